package receiver

import (
	"net/http"
	"strconv"

	"github.com/coreframe/clustermanager/cluster"
	"github.com/coreframe/clustermanager/cmn"
	"github.com/coreframe/clustermanager/mcmp"
)

func stateString(s cluster.WorkerStatus) string {
	if s == cluster.WorkerOK {
		return "OK"
	}
	return "NOTOK"
}

// handleStatus implements STATUS: JVMRoute + Load in [-1, 100],
// delegated to the reconciler's liveness probe.
func (h *Receiver) handleStatus(w http.ResponseWriter, pairs []mcmp.Pair) {
	fields := mcmp.AsMap(pairs)
	route := fields["JVMROUTE"]
	if route == "" {
		writeError(w, cmn.NewSyntaxErr(cmn.ErrJVMRouteEmpty))
		return
	}
	loadStr := fields["LOAD"]
	load := 0
	if loadStr != "" {
		n, err := strconv.Atoi(loadStr)
		if err != nil || n < -1 || n > 100 {
			writeError(w, cmn.NewSyntaxErr(cmn.ErrLoadOutOfRange, loadStr))
			return
		}
		load = n
	}

	h.Registry.LockNodes()
	id, node := h.Registry.FindNodeByJVMRoute(route)
	h.Registry.UnlockNodes()

	if node == nil || !node.IsLive() {
		writeError(w, cmn.NewMemErr(cmn.ErrNoSuchNode, route))
		return
	}

	state := h.Reconciler.NodeIsUp(id, load)
	writeBody(w, "STATUS-RSP", [][2]string{
		{"JVMRoute", route},
		{"State", stateString(state)},
		{"id", h.bootID},
	})
}

// handlePing implements PING's three modes: JVMRoute only,
// Scheme+Host+Port, or no fields (the manager's own liveness).
func (h *Receiver) handlePing(w http.ResponseWriter, pairs []mcmp.Pair) {
	fields := mcmp.AsMap(pairs)
	route := fields["JVMROUTE"]
	scheme, host, port := fields["SCHEME"], fields["HOST"], fields["PORT"]

	var state cluster.WorkerStatus
	switch {
	case route != "":
		h.Registry.LockNodes()
		id, node := h.Registry.FindNodeByJVMRoute(route)
		h.Registry.UnlockNodes()
		if node == nil || !node.IsLive() {
			writeError(w, cmn.NewMemErr(cmn.ErrNoSuchNode, route))
			return
		}
		state = h.Reconciler.NodeIsUp(id, 0)

	case scheme != "" || host != "" || port != "":
		state = h.Reconciler.HostIsUp(scheme, host, port)

	default:
		state = cluster.WorkerOK // the manager is answering, so it's up
	}

	writeBody(w, "PING-RSP", [][2]string{
		{"State", stateString(state)},
		{"id", h.bootID},
	})
}
