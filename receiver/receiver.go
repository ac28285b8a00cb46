package receiver

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/coreframe/clustermanager/cluster"
	"github.com/coreframe/clustermanager/cmn"
	"github.com/coreframe/clustermanager/cmn/cos"
	"github.com/coreframe/clustermanager/mcmp"
)

// Receiver dispatches MCMP requests by HTTP method and also serves
// the UI surface.
type Receiver struct {
	Registry   *cluster.Registry
	Reconciler cluster.Reconciler
	Store      *cluster.Store
	Conf       *cmn.Config

	bootID string // process boot timestamp reported as STATUS/PING "id="
	nonce  string // UI command-link nonce
}

// New wires a Receiver from its collaborators, recording the process
// boot timestamp and generating the UI nonce.
func New(reg *cluster.Registry, store *cluster.Store, rec cluster.Reconciler, conf *cmn.Config) *Receiver {
	return &Receiver{
		Registry:   reg,
		Reconciler: rec,
		Store:      store,
		Conf:       conf,
		bootID:     strconv.FormatInt(time.Now().Unix(), 10),
		nonce:      cos.GenUUID(),
	}
}

func (h *Receiver) persist() {
	if h.Store == nil {
		return
	}
	if err := h.Store.Save(h.Registry); err != nil {
		glog.Warningf("persist snapshot: %v", err)
	}
}

// scope distinguishes context-scope from node-scope *-APP requests:
// a trailing /* or bare * elevates *-APP verbs to node scope.
type scope int

const (
	scopeContext scope = iota
	scopeNode
)

func scopeFromPath(path string) scope {
	path = strings.TrimSuffix(path, "/")
	if path == "*" || strings.HasSuffix(path, "/*") {
		return scopeNode
	}
	return scopeContext
}

// ServeHTTP is the single entry point every MCMP verb goes through:
// read the body, tokenize it, and dispatch by method.
func (h *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	verb := mcmp.Verb(r.Method)

	if mcmp.Unimplemented[verb] {
		writeEmptyOK(w)
		return
	}

	// readLimited reads one byte past the cap so an oversized body is
	// detectable here rather than silently truncated into the parser.
	body, err := readLimited(r, h.Conf.MaxMessageSize)
	if err != nil {
		writeError(w, cmn.NewGeneralErr("%v", err))
		return
	}
	if len(body) > h.Conf.MaxMessageSize {
		writeError(w, cmn.NewSyntaxErr(cmn.ErrMessageTooLong, h.Conf.MaxMessageSize))
		return
	}

	if mcmp.AppScopeVerbs[verb] {
		pairs, err := mcmp.Parse(string(body))
		if err != nil {
			writeError(w, err)
			return
		}
		h.handleAppScope(w, verb, pairs, scopeFromPath(r.URL.Path))
		return
	}

	switch verb {
	case mcmp.Config:
		pairs, err := mcmp.Parse(string(body))
		if err != nil {
			writeError(w, err)
			return
		}
		h.handleConfig(w, pairs)

	case mcmp.Status:
		pairs, err := mcmp.Parse(string(body))
		if err != nil {
			writeError(w, err)
			return
		}
		h.handleStatus(w, pairs)

	case mcmp.Ping:
		// PING tolerates an empty body (liveness of the manager itself).
		var pairs []mcmp.Pair
		if len(body) > 0 {
			pairs, err = mcmp.Parse(string(body))
			if err != nil {
				writeError(w, err)
				return
			}
		}
		h.handlePing(w, pairs)

	case mcmp.Dump, mcmp.Info:
		h.handleDump(w, r, verb)

	case mcmp.Version:
		h.handleVersion(w)

	default:
		writeError(w, cmn.NewSyntaxErr(cmn.ErrUnknownField, string(verb)))
	}
}

func readLimited(r *http.Request, max int) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, int64(max)+1))
}
