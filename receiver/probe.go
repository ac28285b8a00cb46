package receiver

import (
	"github.com/golang/glog"

	"github.com/coreframe/clustermanager/cluster"
)

// ProbeWorkers is the watchdog's liveness pass: every live node's
// worker is probed through the reconciler, and a broken worker's
// ENABLED contexts are parked DISABLED so the routing plane stops
// handing it new sessions. Only context state changes here, so the
// finer context lock suffices; the node lock is taken briefly first to
// snapshot the live ids, never the other way around.
func (h *Receiver) ProbeWorkers() {
	h.Registry.LockNodes()
	var live []int
	for _, id := range h.Registry.NodeIDsUsed() {
		if n := h.Registry.ReadNode(id); n.IsLive() {
			live = append(live, id)
		}
	}
	h.Registry.UnlockNodes()

	for _, id := range live {
		if h.Reconciler.NodeIsUp(id, 0) == cluster.WorkerOK {
			continue
		}
		h.Registry.LockContexts()
		parked := 0
		for _, cid := range h.Registry.ContextsForNode(id) {
			ctx := h.Registry.ReadContext(cid)
			if ctx != nil && ctx.Status == cluster.CtxEnabled {
				ctx.Status = cluster.CtxDisabled
				parked++
			}
		}
		if parked > 0 {
			h.Registry.IncVersion()
		}
		h.Registry.UnlockContexts()
		if parked > 0 {
			glog.Warningf("worker for node %d probes NOTOK, parked %d enabled context(s)", id, parked)
		}
	}
}
