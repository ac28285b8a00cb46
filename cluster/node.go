package cluster

import (
	"time"

	"github.com/coreframe/clustermanager/cmn"
)

// RemovedRoute is the sentinel JVMRoute a tombstoned node carries.
const RemovedRoute = "REMOVED"

// WorkerStats is the colocated proxy-worker stats blob. It is a
// pointer field on Node so reusing a worker's stats on a CONFIG
// re-bind is a pointer copy: the counters survive the rebind.
type WorkerStats struct {
	Elected    int64
	Busy       int64
	Errors     int64
	ReqHandled int64
}

// Node is one back-end worker, keyed by its table slot id and unique
// (while live) JVMRoute.
type Node struct {
	JVMRoute string
	Balancer string
	Domain   string // LB group / failover scope

	Host   string
	Port   string
	Scheme string // ajp | http | https | ws | wss
	Upgrade string

	AJPSecret string
	Reversed  bool

	Removed          bool
	RemoveCheckCount int

	FlushPolicy cmn.FlushPolicy
	FlushWaitUs int

	Ping    int
	Smax    int
	TTL     int
	Timeout int

	ResponseFieldSize int

	LastUpdate time.Time

	// Stats is the colocated proxy-worker-stats blob; see WorkerStats.
	Stats *WorkerStats
}

// workerTuple is the (balancer, scheme, host, port, reversed, smax,
// ttl) identity that must be unique across live nodes.
type workerTuple struct {
	Balancer string
	Scheme   string
	Host     string
	Port     string
	Reversed bool
	Smax     int
	TTL      int
}

func (n *Node) tuple() workerTuple {
	return workerTuple{n.Balancer, n.Scheme, n.Host, n.Port, n.Reversed, n.Smax, n.TTL}
}

// SameWorkerIdentity reports whether two nodes would collide under the
// worker-identity invariant.
func (n *Node) SameWorkerIdentity(other *Node) bool {
	return n.tuple() == other.tuple()
}

// endpointKey identifies a worker purely by (scheme, host, port) -
// the tuple matched on when reusing a tombstoned slot.
type endpointKey struct {
	Scheme string
	Host   string
	Port   string
}

func (n *Node) endpoint() endpointKey {
	return endpointKey{n.Scheme, n.Host, n.Port}
}

func (n *Node) IsLive() bool { return n != nil && !n.Removed }
