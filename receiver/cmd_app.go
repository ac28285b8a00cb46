package receiver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/coreframe/clustermanager/cluster"
	"github.com/coreframe/clustermanager/cmn"
	"github.com/coreframe/clustermanager/mcmp"
)

// handleAppScope implements ENABLE-APP / DISABLE-APP / STOP-APP /
// REMOVE-APP across their three scope modes.
func (h *Receiver) handleAppScope(w http.ResponseWriter, verb mcmp.Verb, pairs []mcmp.Pair, sc scope) {
	fields := mcmp.AsMap(pairs)
	route := fields["JVMROUTE"]
	aliasVal := fields["ALIAS"]
	contextVal := fields["CONTEXT"]
	if route == "" || aliasVal == "" || contextVal == "" {
		writeError(w, cmn.NewSyntaxErr(cmn.ErrAppFieldsRequired))
		return
	}
	aliases := strings.Split(aliasVal, ",")
	firstAlias := strings.ToLower(strings.TrimSpace(aliases[0]))
	contexts := strings.Split(contextVal, ",")
	for i := range contexts {
		contexts[i] = strings.TrimSpace(contexts[i])
	}
	domainScope := fields["RANGE"] == "DOMAIN"

	h.Registry.LockNodes()
	defer h.Registry.UnlockNodes()

	nodeID, node := h.Registry.FindNodeByJVMRoute(route)
	if node == nil || !node.IsLive() {
		if verb == mcmp.RemoveApp {
			writeEmptyOK(w) // idempotent: already gone
			return
		}
		writeError(w, cmn.NewMemErr(cmn.ErrNoSuchNode, route))
		return
	}

	targets := []int{nodeID}
	effectiveScope := sc
	if domainScope {
		targets = h.Registry.NodesInDomain(node.Domain)
		effectiveScope = scopeNode
	}

	var nbRequests int64 = -1
	var vhostAlias, firstPath string
	if len(contexts) > 0 {
		firstPath = contexts[0]
	}

	for _, tid := range targets {
		switch effectiveScope {
		case scopeNode:
			h.applyNodeScope(tid, verb)
		case scopeContext:
			nb, err := h.applyContextScope(tid, firstAlias, contexts, verb)
			if err != nil {
				writeError(w, err)
				return
			}
			if tid == nodeID {
				nbRequests = nb
				vhostAlias = firstAlias
			}
		}
	}

	h.Registry.IncVersion()
	h.persist()

	if verb == mcmp.StopApp && effectiveScope == scopeContext {
		writeBody(w, "STOP-APP-RSP", [][2]string{
			{"JvmRoute", route}, // casing preserved as observed on the wire for this verb
			{"Alias", vhostAlias},
			{"Context", firstPath},
			{"Requests", strconv.FormatInt(nbRequests, 10)},
		})
		return
	}
	writeEmptyOK(w)
}

// applyNodeScope transitions every host+context owned by nodeID;
// REMOVE additionally tombstones the node.
func (h *Receiver) applyNodeScope(nodeID int, verb mcmp.Verb) {
	for _, hid := range h.Registry.HostsForNode(nodeID) {
		host := h.Registry.ReadHost(hid)
		if host == nil {
			continue
		}
		for _, cid := range h.Registry.ContextsForNodeVhost(nodeID, host.VhostID) {
			ctx := h.Registry.ReadContext(cid)
			if ctx == nil {
				continue
			}
			h.transitionContext(nodeID, ctx, verb)
			if verb == mcmp.RemoveApp {
				h.Registry.RemoveContext(cid)
			}
		}
		if verb == mcmp.RemoveApp {
			h.Registry.RemoveHost(hid)
		}
	}
	if verb == mcmp.RemoveApp {
		h.Registry.TombstoneNode(nodeID)
	}
}

// applyContextScope transitions the contexts named in paths on
// nodeID's vhost identified by alias, returning the request count of
// the first one (used by STOP-APP-RSP).
func (h *Receiver) applyContextScope(nodeID int, alias string, paths []string, verb mcmp.Verb) (int64, error) {
	hostID, host := h.Registry.FindHost(nodeID, alias)
	if host == nil {
		return -1, cmn.NewMemErr(cmn.ErrNoSuchAlias, alias, strconv.Itoa(nodeID))
	}
	var nbRequests int64 = -1
	for i, path := range paths {
		cid, ctx := h.Registry.FindContext(nodeID, host.VhostID, path)
		if ctx == nil {
			continue
		}
		h.transitionContext(nodeID, ctx, verb)
		if i == 0 {
			nbRequests = ctx.NbRequests
		}
		if verb == mcmp.RemoveApp {
			h.Registry.RemoveContext(cid)
		}
	}
	if verb == mcmp.RemoveApp {
		if remaining := h.Registry.ContextsForNodeVhost(nodeID, host.VhostID); len(remaining) == 0 {
			h.Registry.RemoveHost(hostID)
		}
	}
	return nbRequests, nil
}

func (h *Receiver) transitionContext(nodeID int, ctx *cluster.Context, verb mcmp.Verb) {
	switch verb {
	case mcmp.EnableApp:
		ctx.Status = cluster.CtxEnabled
		h.warnIfLiveElsewhere(nodeID, ctx.Path)
	case mcmp.DisableApp:
		ctx.Status = cluster.CtxDisabled
	case mcmp.StopApp:
		ctx.Status = cluster.CtxStopped
	case mcmp.RemoveApp:
		ctx.Status = cluster.CtxRemoved
	}
}

// warnIfLiveElsewhere logs a non-fatal warning if path is already
// ENABLED on a node belonging to a different balancer - a common
// misconfiguration.
func (h *Receiver) warnIfLiveElsewhere(nodeID int, path string) {
	me := h.Registry.ReadNode(nodeID)
	if me == nil {
		return
	}
	for _, cid := range h.Registry.ContextIDsUsed() {
		ctx := h.Registry.ReadContext(cid)
		if ctx == nil || ctx.NodeID == nodeID || ctx.Path != path || ctx.Status != cluster.CtxEnabled {
			continue
		}
		other := h.Registry.ReadNode(ctx.NodeID)
		if other != nil && other.Balancer != me.Balancer {
			glog.Warningf("context %q is already ENABLED on balancer %q (node %q); now also enabling on balancer %q (node %q)",
				path, other.Balancer, other.JVMRoute, me.Balancer, me.JVMRoute)
		}
	}
}
