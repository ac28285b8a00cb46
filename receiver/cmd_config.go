package receiver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/coreframe/clustermanager/cluster"
	"github.com/coreframe/clustermanager/cmn"
	"github.com/coreframe/clustermanager/cmn/cos"
	"github.com/coreframe/clustermanager/mcmp"
)

// Field length caps: values longer than the field are a syntax error.
// The original C structs fix these at compile time; this is the
// Go-side equivalent table.
const (
	capJVMRoute = 64
	capBalancer = 64
	capDomain   = 64
	capHost     = 256
	capPort     = 10
	capScheme   = 8
	capUpgrade  = 64
	capSecret   = 64
	capAliasCtx = 512
	capCookie   = 256
)

// nodeSchemes are the worker endpoint types CONFIG accepts.
var nodeSchemes = []string{"ajp", "http", "https", "ws", "wss"}

// aliasGroup is one Alias/Context pair from a CONFIG body: the set of
// virtual-host aliases sharing a vhost-id, and the context paths
// installed under it.
type aliasGroup struct {
	aliases  []string
	contexts []string
}

func checkCap(field, val string, max int) error {
	if len(val) > max {
		return cmn.NewSyntaxErr(cmn.ErrFieldTooLong, field, val, max)
	}
	return nil
}

func boolField(s string) bool {
	return s == "1" || strings.EqualFold(s, "on") || strings.EqualFold(s, "true")
}

func intField(field, s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, cmn.NewSyntaxErr(cmn.ErrBadFieldValue, field, s)
	}
	return n, nil
}

// parseConfig walks the ordered pairs once, splitting them into scalar
// node/balancer fields and the repeated Alias/Context groups, applying
// defaults and config-driven rewrites along the way.
func parseConfig(pairs []mcmp.Pair, conf *cmn.Config) (*cluster.Node, *cluster.Balancer, []aliasGroup, error) {
	node := &cluster.Node{
		Balancer: conf.DefaultBalancer,
		Host:     "localhost",
		Port:     "8009",
		Scheme:   "ajp",
		Ping:     10,
		Smax:     -1,
		TTL:      60,
	}
	bal := cluster.DefaultBalancer(conf.DefaultBalancer)

	var groups []aliasGroup
	var pendingAliases []string
	haveJVMRoute := false

	for _, p := range pairs {
		key := strings.ToUpper(p.Key)
		val := p.Value

		switch key {
		case "ALIAS":
			if pendingAliases != nil {
				return nil, nil, nil, cmn.NewSyntaxErr(cmn.ErrAliasWithoutContext)
			}
			if err := checkCap("Alias", val, capAliasCtx); err != nil {
				return nil, nil, nil, err
			}
			aliases := strings.Split(val, ",")
			for i := range aliases {
				aliases[i] = strings.ToLower(strings.TrimSpace(aliases[i]))
			}
			pendingAliases = aliases

		case "CONTEXT":
			if pendingAliases == nil {
				return nil, nil, nil, cmn.NewSyntaxErr(cmn.ErrContextWithoutAlias)
			}
			if err := checkCap("Context", val, capAliasCtx); err != nil {
				return nil, nil, nil, err
			}
			contexts := strings.Split(val, ",")
			for i := range contexts {
				contexts[i] = strings.TrimSpace(contexts[i])
			}
			groups = append(groups, aliasGroup{aliases: pendingAliases, contexts: contexts})
			pendingAliases = nil

		case "JVMROUTE":
			if err := checkCap("JVMRoute", val, capJVMRoute); err != nil {
				return nil, nil, nil, err
			}
			node.JVMRoute = val
			haveJVMRoute = val != ""

		case "DOMAIN":
			if err := checkCap("Domain", val, capDomain); err != nil {
				return nil, nil, nil, err
			}
			node.Domain = val

		case "HOST":
			if zone := strings.IndexByte(val, '%'); zone >= 0 {
				val = val[:zone] // IPv6 zone suffix stripped
			}
			if err := checkCap("Host", val, capHost); err != nil {
				return nil, nil, nil, err
			}
			node.Host = val

		case "PORT":
			if err := checkCap("Port", val, capPort); err != nil {
				return nil, nil, nil, err
			}
			node.Port = val

		case "TYPE":
			if err := checkCap("Type", val, capScheme); err != nil {
				return nil, nil, nil, err
			}
			scheme := strings.ToLower(val)
			if !cos.StringInSlice(scheme, nodeSchemes) {
				return nil, nil, nil, cmn.NewSyntaxErr(cmn.ErrBadFieldValue, "Type", val)
			}
			node.Scheme = scheme

		case "REVERSED":
			node.Reversed = boolField(val)

		case "FLUSHPACKETS":
			switch strings.ToLower(val) {
			case "", "0", "off", "false":
				node.FlushPolicy = cmn.FlushOff
			case "1", "on", "true":
				node.FlushPolicy = cmn.FlushOn
			case "auto", "2":
				node.FlushPolicy = cmn.FlushAuto
			default:
				return nil, nil, nil, cmn.NewSyntaxErr(cmn.ErrBadFieldValue, "flushpackets", val)
			}

		case "FLUSHWAIT":
			n, err := intField("flushwait", val, node.FlushWaitUs)
			if err != nil {
				return nil, nil, nil, err
			}
			node.FlushWaitUs = n

		case "PING":
			n, err := intField("ping", val, node.Ping)
			if err != nil {
				return nil, nil, nil, err
			}
			node.Ping = n

		case "SMAX":
			n, err := intField("smax", val, node.Smax)
			if err != nil {
				return nil, nil, nil, err
			}
			node.Smax = n

		case "TTL":
			n, err := intField("ttl", val, node.TTL)
			if err != nil {
				return nil, nil, nil, err
			}
			node.TTL = n

		case "TIMEOUT":
			n, err := intField("Timeout", val, node.Timeout)
			if err != nil {
				return nil, nil, nil, err
			}
			node.Timeout = n

		case "BALANCER":
			if err := checkCap("Balancer", val, capBalancer); err != nil {
				return nil, nil, nil, err
			}
			lower := strings.ToLower(val)
			if lower != val {
				glog.Warningf("Balancer %q contains uppercase characters, using %q", val, lower)
			}
			node.Balancer = lower
			bal.Name = lower

		case "STICKYSESSION":
			bal.StickySession = boolField(val)
		case "STICKYSESSIONCOOKIE":
			if err := checkCap("StickySessionCookie", val, capCookie); err != nil {
				return nil, nil, nil, err
			}
			bal.StickySessionCookie = val
		case "STICKYSESSIONPATH":
			if err := checkCap("StickySessionPath", val, capCookie); err != nil {
				return nil, nil, nil, err
			}
			bal.StickySessionPath = val
		case "STICKYSESSIONREMOVE":
			bal.StickySessionRemove = boolField(val)
		case "STICKYSESSIONFORCE":
			bal.StickySessionForce = boolField(val)
		case "WAITWORKER":
			n, err := intField("WaitWorker", val, bal.Timeout)
			if err != nil {
				return nil, nil, nil, err
			}
			bal.Timeout = n
		case "MAXATTEMPTS":
			n, err := intField("Maxattempts", val, bal.MaxAttempts)
			if err != nil {
				return nil, nil, nil, err
			}
			bal.MaxAttempts = n

		default:
			return nil, nil, nil, cmn.NewSyntaxErr(cmn.ErrUnknownField, p.Key)
		}
	}

	if pendingAliases != nil {
		return nil, nil, nil, cmn.NewSyntaxErr(cmn.ErrAliasWithoutContext)
	}
	if !haveJVMRoute {
		return nil, nil, nil, cmn.NewSyntaxErr(cmn.ErrJVMRouteEmpty)
	}

	// configuration-driven rewrites
	if conf.WSTunnel {
		switch node.Scheme {
		case "http":
			node.Scheme = "ws"
		case "https":
			node.Scheme = "wss"
		}
		if (node.Scheme == "ws" || node.Scheme == "wss") && node.Upgrade == "" {
			node.Upgrade = conf.WSUpgradeHeader
		}
	}
	if node.Scheme == "ajp" && conf.AJPSecret != "" {
		node.AJPSecret = conf.AJPSecret
	}
	if err := checkCap("Upgrade", node.Upgrade, capUpgrade); err != nil {
		return nil, nil, nil, err
	}
	if err := checkCap("AJPSecret", node.AJPSecret, capSecret); err != nil {
		return nil, nil, nil, err
	}
	if node.ResponseFieldSize == 0 {
		node.ResponseFieldSize = conf.ResponseFieldSize
	}

	return node, bal, groups, nil
}

// handleConfig implements CONFIG's ten-step transactional body.
func (h *Receiver) handleConfig(w http.ResponseWriter, pairs []mcmp.Pair) {
	node, bal, groups, err := parseConfig(pairs, h.Conf)
	if err != nil {
		writeError(w, err)
		return
	}

	h.Registry.LockNodes()
	defer h.Registry.UnlockNodes()

	// step 1: upsert the balancer.
	if _, err := h.Registry.UpsertBalancer(bal); err != nil {
		writeError(w, err)
		return
	}

	// step 2: look up any existing node with the same JVMRoute.
	id := -1
	existingID, existing := h.Registry.FindNodeByJVMRoute(node.JVMRoute)
	if existing != nil && existing.IsLive() {
		if existing.SameWorkerIdentity(node) {
			id = existingID
		} else {
			h.Registry.TombstoneNode(existingID)
			h.Registry.CascadeDeleteDependents(existingID)
			h.Registry.IncVersion()
			writeError(w, cmn.NewMemErr(cmn.ErrCantUpdateNode, node.JVMRoute))
			return
		}
	}

	// step 3: refuse a *different* live node sharing the worker tuple.
	if _, dup := h.Registry.FindLiveNodeByWorkerTuple(node, id); dup != nil {
		writeError(w, cmn.NewMemErr(cmn.ErrDuplicateWorker, node.JVMRoute, dup.JVMRoute))
		return
	}

	// step 4: ask the reconciler whether a proxy worker already exists.
	clean := true
	var handle *cluster.Worker
	reusedSlot := -1
	if w2, wid, ok := h.Reconciler.GetWorkerID(node.Balancer, node.Scheme, node.Host, node.Port); ok {
		handle = w2
		if id == wid {
			clean = true
		} else {
			id = wid
			clean = false
			reusedSlot = wid
			node.Stats = w2.Stats // splice the existing worker's stats blob into the node row
		}
	} else if id < 0 {
		if epID, epNode := h.Registry.FindNodeByEndpoint(node.Scheme, node.Host, node.Port); epNode != nil && epNode.Removed {
			h.Registry.ReviveNode(epID, node.JVMRoute)
			id = epID
			reusedSlot = epID
		}
	}

	// step 5: if still unresolved, allocate a fresh worker id.
	if id < 0 {
		freeID, ok := h.Reconciler.GetFreeWorkerID(h.Registry.MaxNodes())
		if !ok {
			writeError(w, cmn.NewMemErr(cmn.ErrNodeTableFull, h.Registry.MaxNodes()))
			return
		}
		id = freeID
	}

	// step 6: upsert the node at the chosen slot.
	finalID, err := h.Registry.InsertUpdateNode(node, id, clean)
	if err != nil {
		if reusedSlot >= 0 {
			h.Registry.TombstoneNode(reusedSlot)
		}
		writeError(w, err)
		return
	}

	// step 7: re-enable the reconciled worker in place. A failure here
	// must still leave the registry consistent: re-tombstone the slot
	// and keep the version bump so readers re-sync.
	if !clean && handle != nil {
		if err := h.Reconciler.ReenableWorker(node, handle, h.Conf); err != nil {
			h.Registry.TombstoneNode(finalID)
			h.Registry.CascadeDeleteDependents(finalID)
			h.Registry.IncVersion()
			writeError(w, cmn.NewMemErr(cmn.ErrCantUpdateNode, node.JVMRoute))
			return
		}
	}
	// step 8: bump the version.
	h.Registry.IncVersion()

	// step 10 (done early, inside the lock): install the worker entry
	// so the next CONFIG's GetWorkerID/GetFreeWorkerID call sees this
	// slot as taken. The remaining "push worker parameters to the proxy
	// runtime" half of step 10 is the embedding HTTP server's job.
	h.Reconciler.Bind(finalID, node)

	// step 9: install aliases and contexts in status STOPPED, and
	// record this node's LB-group row if it declared a Domain.
	if node.Domain != "" {
		if _, err := h.Registry.UpsertDomain(&cluster.Domain{
			UUID:     cos.GenDomainUUID(),
			Domain:   node.Domain,
			Balancer: node.Balancer,
			JVMRoute: node.JVMRoute,
		}); err != nil {
			writeError(w, err)
			return
		}
	}
	for _, g := range groups {
		// an alias already present on the node pins the whole group to
		// its vhost-id; otherwise the group gets the next dense id.
		vhostID := 0
		for _, alias := range g.aliases {
			if _, existing := h.Registry.FindHost(finalID, alias); existing != nil {
				vhostID = existing.VhostID
				break
			}
		}
		if vhostID == 0 {
			vhostID = h.Registry.NextVhostID(finalID)
		}
		for _, alias := range g.aliases {
			if _, existing := h.Registry.FindHost(finalID, alias); existing != nil {
				continue
			}
			if _, err := h.Registry.InsertHost(&cluster.Host{NodeID: finalID, VhostID: vhostID, Alias: alias}); err != nil {
				writeError(w, err)
				return
			}
		}
		for _, ctx := range g.contexts {
			if _, existing := h.Registry.FindContext(finalID, vhostID, ctx); existing != nil {
				existing.Status = cluster.CtxStopped
				continue
			}
			if _, err := h.Registry.InsertContext(&cluster.Context{
				NodeID: finalID, VhostID: vhostID, Path: ctx, Status: cluster.CtxStopped,
			}); err != nil {
				writeError(w, err)
				return
			}
		}
	}

	h.persist()
	writeEmptyOK(w)
}
