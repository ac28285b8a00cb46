package cluster

import "github.com/coreframe/clustermanager/cmn"

// WorkerStatus is the liveness verdict STATUS/PING translate into a
// wire State.
type WorkerStatus int

const (
	WorkerOK WorkerStatus = iota
	WorkerNotOK
)

// Worker is the proxy's native worker-table row the reconciler bridges
// to: an entry keyed by (balancer, scheme, host, port) that may
// predate, and therefore outlive, any particular node row.
type Worker struct {
	ID       int
	Balancer string
	Scheme   string
	Host     string
	Port     string
	Route    string
	Stats    *WorkerStats
}

// Reconciler is the contract CONFIG uses to decide whether a proxy
// worker already exists for an incoming (balancer, scheme, host,
// port), to allocate a fresh worker-table slot, and to rewrite a
// worker's routing fields in place after a node identity change.
//
// Kept as an explicit interface so the routing plane can be swapped
// for a test double.
type Reconciler interface {
	// GetWorkerID locates an existing worker matching the tuple and
	// returns its handle and node-slot id, or ok=false if none exists.
	GetWorkerID(balancer, scheme, host, port string) (handle *Worker, id int, ok bool)

	// GetFreeWorkerID allocates a slot index in the worker table,
	// honouring tableSize, or ok=false if full.
	GetFreeWorkerID(tableSize int) (id int, ok bool)

	// ReenableWorker rewrites handle's scheme/host/port/route to match
	// node.
	ReenableWorker(node *Node, handle *Worker, conf *cmn.Config) error

	// NodeIsUp / HostIsUp probe liveness.
	NodeIsUp(id int, load int) WorkerStatus
	HostIsUp(scheme, host, port string) WorkerStatus

	// Bind installs or refreshes the worker entry at id to match node,
	// pushing its parameters for runtime creation. Kept in the
	// interface because it is what makes a later GetWorkerID/
	// GetFreeWorkerID call see this node's slot as taken.
	Bind(id int, node *Node)

	// Unbind releases the worker entry at id once the watchdog has
	// reaped the node's slot; a tombstoned-but-unreaped node keeps its
	// worker so a rematching CONFIG can splice the stats back in.
	Unbind(id int)
}

// MemReconciler is the in-process stand-in for the proxy's native
// worker table: the embedding HTTP server and request-routing layer
// live outside this process, but CONFIG still needs something behind
// the Reconciler interface to drive against, so this tracks worker
// bookkeeping without pretending to route live traffic.
type MemReconciler struct {
	workers map[int]*Worker
	max     int
}

func NewMemReconciler(max int) *MemReconciler {
	return &MemReconciler{workers: make(map[int]*Worker), max: max}
}

func (m *MemReconciler) GetWorkerID(balancer, scheme, host, port string) (*Worker, int, bool) {
	for id, w := range m.workers {
		if w.Balancer == balancer && w.Scheme == scheme && w.Host == host && w.Port == port {
			return w, id, true
		}
	}
	return nil, -1, false
}

func (m *MemReconciler) GetFreeWorkerID(tableSize int) (int, bool) {
	for i := 0; i < tableSize && i < m.max; i++ {
		if _, used := m.workers[i]; !used {
			return i, true
		}
	}
	return -1, false
}

func (m *MemReconciler) ReenableWorker(node *Node, handle *Worker, _ *cmn.Config) error {
	handle.Balancer = node.Balancer
	handle.Scheme = node.Scheme
	handle.Host = node.Host
	handle.Port = node.Port
	handle.Route = node.JVMRoute
	return nil
}

// Bind installs/replaces the worker at id - called by CONFIG once it has
// settled on the node's final slot id, keeping the worker table and the
// node table in step. Without this, a second CONFIG would never see the
// first node's slot as occupied: the worker table is the thing
// GetWorkerID/GetFreeWorkerID actually consult.
func (m *MemReconciler) Bind(id int, node *Node) {
	m.workers[id] = &Worker{
		ID:       id,
		Balancer: node.Balancer,
		Scheme:   node.Scheme,
		Host:     node.Host,
		Port:     node.Port,
		Route:    node.JVMRoute,
		Stats:    node.Stats,
	}
}

func (m *MemReconciler) Unbind(id int) { delete(m.workers, id) }

func (m *MemReconciler) Get(id int) *Worker { return m.workers[id] }

func (m *MemReconciler) NodeIsUp(id int, load int) WorkerStatus {
	if load == -1 {
		return WorkerNotOK
	}
	if _, ok := m.workers[id]; !ok {
		return WorkerNotOK
	}
	return WorkerOK
}

func (m *MemReconciler) HostIsUp(_, _, _ string) WorkerStatus {
	return WorkerOK
}
