package cluster

import (
	"strings"
	"sync"
	"time"

	"github.com/coreframe/clustermanager/cmn"
	"github.com/coreframe/clustermanager/cmn/debug"
)

// Registry is the thin facade over the six tables (nodes, hosts,
// contexts, balancers, session-ids, domains): it enforces the
// cross-table invariants (cascade delete, vhost-id density,
// worker-identity uniqueness) and exposes the two named locks guarding
// them.
//
// The tables would live in memory-mapped files shared by multiple
// worker processes in a multi-process deployment; this receiver runs
// as goroutines inside one process, so node-shm/context-shm are
// ordinary sync.Mutex rather than cross-process semaphores. The
// locking discipline - order, scope, what's covered by which lock -
// is unchanged.
type Registry struct {
	nodeShm    sync.Mutex
	contextShm sync.Mutex

	nodes      *Table[Node]
	hosts      *Table[Host]
	contexts   *Table[Context]
	balancers  *Table[Balancer]
	sessionIDs *Table[SessionID]
	domains    *Table[Domain]

	ver version

	nodeByRoute *keyIndex
	balByName   *keyIndex
}

func NewRegistry(conf *cmn.Config) *Registry {
	return &Registry{
		nodes:       NewTable[Node](conf.MaxNode),
		hosts:       NewTable[Host](conf.MaxHost),
		contexts:    NewTable[Context](conf.MaxContext),
		balancers:   NewTable[Balancer](conf.MaxNode), // one balancer row per distinct name, bounded like nodes
		sessionIDs:  NewTable[SessionID](conf.MaxSessionID),
		domains:     NewTable[Domain](conf.MaxDomain),
		nodeByRoute: newKeyIndex(),
		balByName:   newKeyIndex(),
	}
}

/////////////
// locking //
/////////////

// LockNodes guards the node, host, context, balancer, and domain
// tables. Required before reading a node by JVMRoute prior to mutation.
func (r *Registry) LockNodes()   { r.nodeShm.Lock() }
func (r *Registry) UnlockNodes() { r.nodeShm.Unlock() }

// LockContexts is the finer lock used only when the node lock is not
// held (e.g. the reconciler's watchdog touching only context state).
func (r *Registry) LockContexts()   { r.contextShm.Lock() }
func (r *Registry) UnlockContexts() { r.contextShm.Unlock() }

/////////////
// version //
/////////////

func (r *Registry) IncVersion() int64 { return r.ver.inc() }
func (r *Registry) GetVersion() int64 { return r.ver.get() }

///////////
// nodes //
///////////

func (r *Registry) MaxNodes() int      { return r.nodes.MaxSize() }
func (r *Registry) ReadNode(id int) *Node { return r.nodes.Get(id) }
func (r *Registry) NodeIDsUsed() []int { return r.nodes.UsedIDs() }

// FindNodeByJVMRoute returns the live or tombstoned node carrying
// route, or (-1, nil) if none exists. Caller must hold the node lock.
func (r *Registry) FindNodeByJVMRoute(route string) (int, *Node) {
	for _, id := range r.nodeByRoute.candidates(route) {
		if n := r.nodes.Get(id); n != nil && n.JVMRoute == route {
			return id, n
		}
	}
	// fall back to a full scan: the index only ever misses on a stale
	// digest bucket, never gives a false positive that must be trusted.
	return r.nodes.Find(func(n *Node) bool { return n.JVMRoute == route })
}

// FindLiveNodeByWorkerTuple returns a *different* live node sharing the
// worker-identity tuple with candidate, excluding excludeID.
func (r *Registry) FindLiveNodeByWorkerTuple(candidate *Node, excludeID int) (int, *Node) {
	ids := r.nodes.FindAll(func(n *Node) bool {
		return n.IsLive() && n.SameWorkerIdentity(candidate)
	})
	for _, id := range ids {
		if id != excludeID {
			return id, r.nodes.Get(id)
		}
	}
	return -1, nil
}

// FindNodeByEndpoint locates a node - live or tombstoned - at
// (scheme, host, port), used when CONFIG looks for a slot to reuse.
func (r *Registry) FindNodeByEndpoint(scheme, host, port string) (int, *Node) {
	return r.nodes.Find(func(n *Node) bool {
		return n.Scheme == scheme && n.Host == host && n.Port == port
	})
}

// InsertUpdateNode inserts or updates a node row: if id is -1 a free
// slot is allocated, otherwise slot id is overwritten in place. clean
// controls whether node.Stats is reset (brand-new node) or left
// untouched (slot reuse, stats must carry over).
func (r *Registry) InsertUpdateNode(node *Node, id int, clean bool) (int, error) {
	if id < 0 {
		free, ok := r.nodes.Alloc()
		if !ok {
			return -1, cmn.NewMemErr(cmn.ErrNodeTableFull, r.nodes.MaxSize())
		}
		id = free
	}
	if clean || node.Stats == nil {
		node.Stats = &WorkerStats{}
	}
	if old := r.nodes.Get(id); old != nil && old.JVMRoute != node.JVMRoute {
		r.nodeByRoute.remove(old.JVMRoute, id)
	}
	node.LastUpdate = time.Now()
	r.nodes.Set(id, node)
	r.nodeByRoute.add(node.JVMRoute, id)
	return id, nil
}

// TombstoneNode marks a node removed and rewrites its JVMRoute to the
// sentinel: the slot is retained for later reuse but its identity is
// freed immediately.
func (r *Registry) TombstoneNode(id int) {
	n := r.nodes.Get(id)
	if n == nil {
		return
	}
	r.nodeByRoute.remove(n.JVMRoute, id)
	n.JVMRoute = RemovedRoute
	n.Removed = true
	n.RemoveCheckCount = 0
	r.nodeByRoute.add(RemovedRoute, id)
}

// ReviveNode clears the tombstone and reassigns JVMRoute, used when a
// matching-endpoint CONFIG reuses a freed slot.
func (r *Registry) ReviveNode(id int, route string) {
	n := r.nodes.Get(id)
	debug.Assert(n != nil, "revive of absent node id ", id)
	r.nodeByRoute.remove(n.JVMRoute, id)
	n.JVMRoute = route
	n.Removed = false
	n.RemoveCheckCount = 0
	r.nodeByRoute.add(route, id)
}

// CascadeDeleteDependents removes every host and context row owned by
// id, leaving the node row itself untouched. Used both by RemoveNode
// and by CONFIG's identity-conflict path, which cascade-deletes a
// newly tombstoned node's dependents without freeing its slot.
func (r *Registry) CascadeDeleteDependents(id int) {
	for _, hid := range r.hosts.FindAll(func(h *Host) bool { return h.NodeID == id }) {
		r.hosts.Remove(hid)
	}
	for _, cid := range r.contexts.FindAll(func(c *Context) bool { return c.NodeID == id }) {
		r.contexts.Remove(cid)
	}
}

// RemoveNode cascades: every host and context whose NodeID matches id
// is removed atomically under the node lock, then the node's own slot
// is freed.
func (r *Registry) RemoveNode(id int) {
	n := r.nodes.Get(id)
	if n != nil {
		r.nodeByRoute.remove(n.JVMRoute, id)
	}
	r.CascadeDeleteDependents(id)
	r.nodes.Remove(id)
}

// removeCheckThreshold is how many watchdog passes must observe a
// tombstone before its slot is freed, giving concurrent readers time
// to notice the removal via the version counter first.
const removeCheckThreshold = 3

// ReapTombstones is the watchdog half of the two-phase removal: each
// pass advances every tombstoned node's remove-check counter, and a
// slot is freed once all dependent hosts/contexts are gone and the
// counter has passed the threshold. Returns the ids freed this pass;
// the version is bumped iff any slot was freed.
func (r *Registry) ReapTombstones() []int {
	r.LockNodes()
	defer r.UnlockNodes()

	var freed []int
	for _, id := range r.nodes.FindAll(func(n *Node) bool { return n.Removed }) {
		n := r.nodes.Get(id)
		n.RemoveCheckCount++
		if n.RemoveCheckCount <= removeCheckThreshold {
			continue
		}
		if len(r.HostsForNode(id)) > 0 || len(r.ContextsForNode(id)) > 0 {
			continue
		}
		r.nodeByRoute.remove(n.JVMRoute, id)
		r.nodes.Remove(id)
		freed = append(freed, id)
	}
	if len(freed) > 0 {
		r.IncVersion()
	}
	return freed
}

///////////////
// balancers //
///////////////

func (r *Registry) FindBalancerByName(name string) (int, *Balancer) {
	for _, id := range r.balByName.candidates(name) {
		if b := r.balancers.Get(id); b != nil && b.Name == name {
			return id, b
		}
	}
	return r.balancers.Find(func(b *Balancer) bool { return b.Name == name })
}

// UpsertBalancer inserts or updates the balancer row named b.Name,
// creating it with CONFIG's documented defaults if absent.
func (r *Registry) UpsertBalancer(b *Balancer) (int, error) {
	if id, existing := r.FindBalancerByName(b.Name); existing != nil {
		*existing = *b
		return id, nil
	}
	id, ok := r.balancers.Alloc()
	if !ok {
		return -1, cmn.NewMemErr(cmn.ErrBalancerTableFull, r.balancers.MaxSize())
	}
	r.balancers.Set(id, b)
	r.balByName.add(b.Name, id)
	return id, nil
}

func (r *Registry) ReadBalancer(id int) *Balancer { return r.balancers.Get(id) }

///////////
// hosts //
///////////

// NextVhostID implements the vhost-id density invariant: a new alias
// on node nodeID with no preassigned id gets
// max(existing vhost-id for that node) + 1, so the set of distinct
// vhost-ids on a node's aliases is always a prefix {1,...,k}.
func (r *Registry) NextVhostID(nodeID int) int {
	max := 0
	for _, id := range r.hosts.FindAll(func(h *Host) bool { return h.NodeID == nodeID }) {
		if h := r.hosts.Get(id); h.VhostID > max {
			max = h.VhostID
		}
	}
	return max + 1
}

func (r *Registry) InsertHost(h *Host) (int, error) {
	id, ok := r.hosts.Alloc()
	if !ok {
		return -1, cmn.NewMemErr(cmn.ErrHostTableFull, r.hosts.MaxSize())
	}
	r.hosts.Set(id, h)
	return id, nil
}

func (r *Registry) FindHost(nodeID int, alias string) (int, *Host) {
	alias = strings.ToLower(alias)
	return r.hosts.Find(func(h *Host) bool { return h.NodeID == nodeID && h.Alias == alias })
}

func (r *Registry) HostsForNode(nodeID int) []int {
	return r.hosts.FindAll(func(h *Host) bool { return h.NodeID == nodeID })
}

func (r *Registry) RemoveHost(id int) { r.hosts.Remove(id) }
func (r *Registry) ReadHost(id int) *Host { return r.hosts.Get(id) }

//////////////
// contexts //
//////////////

func (r *Registry) InsertContext(c *Context) (int, error) {
	id, ok := r.contexts.Alloc()
	if !ok {
		return -1, cmn.NewMemErr(cmn.ErrContextTableFull, r.contexts.MaxSize())
	}
	r.contexts.Set(id, c)
	return id, nil
}

func (r *Registry) ReadContext(id int) *Context { return r.contexts.Get(id) }

func (r *Registry) FindContext(nodeID, vhostID int, path string) (int, *Context) {
	return r.contexts.Find(func(c *Context) bool {
		return c.NodeID == nodeID && c.VhostID == vhostID && c.Path == path
	})
}

func (r *Registry) ContextsForNodeVhost(nodeID, vhostID int) []int {
	return r.contexts.FindAll(func(c *Context) bool { return c.NodeID == nodeID && c.VhostID == vhostID })
}

func (r *Registry) ContextsForNode(nodeID int) []int {
	return r.contexts.FindAll(func(c *Context) bool { return c.NodeID == nodeID })
}

func (r *Registry) RemoveContext(id int) { r.contexts.Remove(id) }

//////////////////
// session ids  //
//////////////////

func (r *Registry) RecordSessionID(sessionID, route string) {
	if id, existing := r.sessionIDs.Find(func(s *SessionID) bool { return s.SessionID == sessionID }); existing != nil {
		existing.JVMRoute = route
		_ = id
		return
	}
	id, ok := r.sessionIDs.Alloc()
	if !ok {
		// display-only table and not fatal if full; an MCMP sender
		// never directly asks to store one - silently drop rather
		// than growing unbounded.
		return
	}
	r.sessionIDs.Set(id, &SessionID{SessionID: sessionID, JVMRoute: route})
}

func (r *Registry) SessionIDsUsed() []int { return r.sessionIDs.UsedIDs() }
func (r *Registry) ReadSessionID(id int) *SessionID { return r.sessionIDs.Get(id) }

/////////////
// domains //
/////////////

// UpsertDomain inserts the LB-group row keyed by (domain, balancer,
// JVMRoute), or refreshes it in place: a node re-CONFIGing with the
// same group must not grow the table.
func (r *Registry) UpsertDomain(d *Domain) (int, error) {
	if id, existing := r.domains.Find(func(e *Domain) bool {
		return e.Domain == d.Domain && e.Balancer == d.Balancer && e.JVMRoute == d.JVMRoute
	}); existing != nil {
		d.UUID = existing.UUID
		*existing = *d
		return id, nil
	}
	id, ok := r.domains.Alloc()
	if !ok {
		return -1, cmn.NewMemErr(cmn.ErrDomainTableFull, r.domains.MaxSize())
	}
	r.domains.Set(id, d)
	return id, nil
}

func (r *Registry) DomainsUsed() []int   { return r.domains.UsedIDs() }
func (r *Registry) ReadDomain(id int) *Domain { return r.domains.Get(id) }

// NodesInDomain returns every live node whose Domain matches domain, for
// domain-scope *-APP commands.
func (r *Registry) NodesInDomain(domain string) []int {
	return r.nodes.FindAll(func(n *Node) bool { return n.IsLive() && n.Domain == domain })
}

// tables exposes max-size/ids-used uniformly for DUMP/INFO.
func (r *Registry) BalancerIDsUsed() []int { return r.balancers.UsedIDs() }
func (r *Registry) MaxBalancers() int      { return r.balancers.MaxSize() }
func (r *Registry) MaxHosts() int          { return r.hosts.MaxSize() }
func (r *Registry) MaxContexts() int       { return r.contexts.MaxSize() }
func (r *Registry) MaxSessionIDs() int     { return r.sessionIDs.MaxSize() }
func (r *Registry) MaxDomains() int        { return r.domains.MaxSize() }
func (r *Registry) HostIDsUsed() []int     { return r.hosts.UsedIDs() }
func (r *Registry) ContextIDsUsed() []int  { return r.contexts.UsedIDs() }
