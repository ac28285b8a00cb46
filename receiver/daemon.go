package receiver

import (
	"context"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coreframe/clustermanager/cluster"
	"github.com/coreframe/clustermanager/cmn"
)

// Daemon wires a Receiver, its persistence store, its metrics, and the
// HTTP server that exposes all three as a single in-process server.
type Daemon struct {
	Receiver *Receiver
	Metrics  *Metrics

	srv        *http.Server
	persTicker *time.Ticker
	reapTicker *time.Ticker
	done       chan struct{}
}

// NewDaemon constructs the registry, reconciler, and (if enabled)
// persistence store, restores any prior snapshot, and assembles the
// HTTP mux serving the MCMP receiver, the UI/status surface, and
// /metrics.
func NewDaemon(conf *cmn.Config) (*Daemon, error) {
	reg := cluster.NewRegistry(conf)

	path := ""
	if conf.Persist {
		path = conf.PersistBasePath + ".db"
	}
	store, err := cluster.OpenStore(path)
	if err != nil {
		return nil, err
	}
	if conf.Persist {
		if err := store.Load(reg); err != nil {
			glog.Warningf("restore snapshot from %s: %v", path, err)
		}
	}

	rec := cluster.NewMemReconciler(conf.MaxNode)
	h := New(reg, store, rec, conf)
	metrics := NewMetrics(prometheus.DefaultRegisterer, reg)

	mux := http.NewServeMux()
	mux.Handle("/mod_cluster-manager", http.HandlerFunc(h.UIHandler))
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", metrics.Wrap(h))

	return &Daemon{
		Receiver: h,
		Metrics:  metrics,
		srv:      &http.Server{Addr: conf.ListenAddr, Handler: mux},
		done:     make(chan struct{}),
	}, nil
}

// Run starts the HTTP server, the tombstone-reaping watchdog, and, if
// persistence is enabled, a background snapshot flush every
// conf.PersistInterval. It blocks until the server stops.
func (d *Daemon) Run() error {
	if d.Receiver.Conf.Persist {
		d.persTicker = time.NewTicker(d.Receiver.Conf.PersistInterval)
	}
	d.reapTicker = time.NewTicker(d.Receiver.Conf.ReapInterval)
	go d.watchdog()
	glog.Infof("clustermanager listening on %s", d.srv.Addr)
	err := d.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// watchdog drives the background duties: probing worker liveness,
// advancing tombstoned nodes toward reaping (releasing their worker
// slots once freed), and flushing the registry snapshot to disk.
func (d *Daemon) watchdog() {
	var persistC <-chan time.Time
	if d.persTicker != nil {
		persistC = d.persTicker.C
	}
	for {
		select {
		case <-d.reapTicker.C:
			d.Receiver.ProbeWorkers()
			if freed := d.Receiver.Registry.ReapTombstones(); len(freed) > 0 {
				for _, id := range freed {
					d.Receiver.Reconciler.Unbind(id)
				}
				glog.Infof("reaped %d tombstoned node slot(s): %v", len(freed), freed)
			}
		case <-persistC:
			d.Receiver.Registry.LockNodes()
			d.Receiver.persist()
			d.Receiver.Registry.UnlockNodes()
		case <-d.done:
			return
		}
	}
}

// Shutdown stops the HTTP server and closes the persistence store.
func (d *Daemon) Shutdown(ctx context.Context) error {
	if d.reapTicker != nil {
		d.reapTicker.Stop()
		close(d.done)
	}
	if d.persTicker != nil {
		d.persTicker.Stop()
	}
	if d.Receiver.Store != nil {
		_ = d.Receiver.Store.Close()
	}
	return d.srv.Shutdown(ctx)
}
