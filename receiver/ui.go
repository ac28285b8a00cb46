package receiver

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
)

// UIHandler is the status/command page: a GET returns an HTML page;
// the same page's action links carry a nonce-guarded command
// (ENABLE-APP/DISABLE-APP/STOP-APP/REMOVE-APP) as query parameters. A
// mismatched nonce silently drops every other parameter rather than
// erroring.
//
// The precise look of the rendered page is a cosmetic concern; what
// matters, and what's implemented here, is the nonce check and the
// query-to-command translation.
func (h *Receiver) UIHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if cmd := q.Get("Cmd"); cmd != "" {
		if !h.Conf.CheckNonce || q.Get("nonce") == h.nonce {
			h.dispatchUICommand(cmd, q)
		}
		// nonce mismatch: fall through and just render the page, every
		// other parameter dropped.
	}
	h.renderStatusPage(w)
}

// dispatchUICommand replays a UI-originated command through the same
// ServeHTTP path every MCMP sender goes through, so the UI never
// bypasses validation, locking, or persistence. The response is
// discarded; the page re-render that follows reflects the new state.
func (h *Receiver) dispatchUICommand(cmd string, q url.Values) {
	body := url.Values{}
	for _, key := range []string{"JVMRoute", "Alias", "Context", "Range", "Load", "Scheme", "Host", "Port"} {
		if v := q.Get(key); v != "" {
			body.Set(key, v)
		}
	}
	path := "/"
	if q.Get("Range") == "NODE" {
		path = "/*"
	}
	req := httptest.NewRequest(cmd, path, strings.NewReader(body.Encode()))
	h.ServeHTTP(httptest.NewRecorder(), req)
}

type ctxView struct {
	ID         int
	Path       string
	Status     string
	NbRequests int64
}

type hostView struct {
	ID       int
	VhostID  int
	Alias    string
	Contexts []ctxView
}

type nodeView struct {
	ID       int
	JVMRoute string
	Balancer string
	Domain   string
	Host     string
	Port     string
	Scheme   string
	Removed  bool
	Hosts    []hostView
}

type statusPageData struct {
	Version      int64
	Nonce        string
	CommandLinks bool
	Nodes        []nodeView
}

var statusTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html><head><title>cluster manager</title></head>
<body>
<h1>cluster manager</h1>
<p>version: {{.Version}}</p>
{{range .Nodes}}{{$node := .}}
<h2>node {{.JVMRoute}} ({{.Scheme}}://{{.Host}}:{{.Port}}, balancer {{.Balancer}}{{if .Removed}}, REMOVED{{end}})</h2>
<ul>
{{range .Hosts}}{{$host := .}}{{range .Contexts}}
  <li>{{$host.Alias}}{{.Path}} [{{.Status}}] requests={{.NbRequests}}
{{if $.CommandLinks}}    <a href="?Cmd=ENABLE-APP&JVMRoute={{$node.JVMRoute}}&Alias={{$host.Alias}}&Context={{.Path}}&nonce={{$.Nonce}}">enable</a>
    <a href="?Cmd=DISABLE-APP&JVMRoute={{$node.JVMRoute}}&Alias={{$host.Alias}}&Context={{.Path}}&nonce={{$.Nonce}}">disable</a>
    <a href="?Cmd=STOP-APP&JVMRoute={{$node.JVMRoute}}&Alias={{$host.Alias}}&Context={{.Path}}&nonce={{$.Nonce}}">stop</a>
    <a href="?Cmd=REMOVE-APP&JVMRoute={{$node.JVMRoute}}&Alias={{$host.Alias}}&Context={{.Path}}&nonce={{$.Nonce}}">remove</a>
{{end}}  </li>
{{end}}{{end}}
</ul>
{{end}}
</body></html>
`))

func (h *Receiver) renderStatusPage(w http.ResponseWriter) {
	h.Registry.LockNodes()
	data := statusPageData{Version: h.Registry.GetVersion(), Nonce: h.nonce, CommandLinks: h.Conf.EnableCommandLinks}
	for _, id := range h.Registry.NodeIDsUsed() {
		n := h.Registry.ReadNode(id)
		nv := nodeView{ID: id, JVMRoute: n.JVMRoute, Balancer: n.Balancer, Domain: n.Domain,
			Host: n.Host, Port: n.Port, Scheme: n.Scheme, Removed: n.Removed}
		for _, hid := range h.Registry.HostsForNode(id) {
			host := h.Registry.ReadHost(hid)
			hv := hostView{ID: hid, VhostID: host.VhostID, Alias: host.Alias}
			for _, cid := range h.Registry.ContextsForNodeVhost(id, host.VhostID) {
				ctx := h.Registry.ReadContext(cid)
				hv.Contexts = append(hv.Contexts, ctxView{ID: cid, Path: ctx.Path, Status: ctx.Status.String(), NbRequests: ctx.NbRequests})
			}
			nv.Hosts = append(nv.Hosts, hv)
		}
		data.Nodes = append(data.Nodes, nv)
	}
	h.Registry.UnlockNodes()

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_ = statusTemplate.Execute(w, data)
}
