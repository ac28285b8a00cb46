package cluster

import "sync/atomic"

// version is the singleton monotonic counter for the registry. Every
// mutation to the node/host/context graph increments it before the
// node lock is released, giving readers a cheap way to detect change.
type version struct {
	v int64
}

func (vs *version) inc() int64 {
	return atomic.AddInt64(&vs.v, 1)
}

func (vs *version) get() int64 {
	return atomic.LoadInt64(&vs.v)
}
