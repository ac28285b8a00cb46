package receiver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/coreframe/clustermanager/mcmp"
)

// ReleaseString is the hard-coded value VERSION reports.
const ReleaseString = "clustermanager/1.0.0"

// handleVersion implements VERSION: a hard-coded release string and
// protocol version.
func (h *Receiver) handleVersion(w http.ResponseWriter) {
	writeBody(w, "VERSION-RSP", [][2]string{
		{"Protocol", ProtocolVersion},
		{"Release", ReleaseString},
	})
}

// handleDump implements DUMP and INFO: both enumerate the same
// tables, rendered as text/plain or text/xml per the Accept header.
// DUMP and INFO are otherwise identical here; upstream mod_cluster
// distinguishes raw-vs-friendly formatting, which this folds into one
// table walk.
func (h *Receiver) handleDump(w http.ResponseWriter, r *http.Request, verb mcmp.Verb) {
	if strings.Contains(r.Header.Get("Accept"), "text/xml") {
		h.renderXML(w)
		return
	}
	h.renderPlain(w)
}

func (h *Receiver) renderPlain(w http.ResponseWriter) {
	h.Registry.LockNodes()
	defer h.Registry.UnlockNodes()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Version: %d\n", h.Registry.GetVersion())

	for _, id := range h.Registry.BalancerIDsUsed() {
		b := h.Registry.ReadBalancer(id)
		fmt.Fprintf(&sb, "Balancer: [%d] Name: %s Sticky: %v StickySessionCookie: %s StickySessionPath: %s Timeout: %d Maxattempts: %d\n",
			id, b.Name, b.StickySession, b.StickySessionCookie, b.StickySessionPath, b.Timeout, b.MaxAttempts)
	}
	for _, id := range h.Registry.NodeIDsUsed() {
		n := h.Registry.ReadNode(id)
		fmt.Fprintf(&sb, "Node: [%d] JVMRoute: %s Balancer: %s Domain: %s Host: %s Port: %s Type: %s Reversed: %v Removed: %v\n",
			id, n.JVMRoute, n.Balancer, n.Domain, n.Host, n.Port, n.Scheme, n.Reversed, n.Removed)
		for _, hid := range h.Registry.HostsForNode(id) {
			host := h.Registry.ReadHost(hid)
			fmt.Fprintf(&sb, "Host: [%d] Node: [%d] Vhost: %d Alias: %s\n", hid, id, host.VhostID, host.Alias)
			for _, cid := range h.Registry.ContextsForNodeVhost(id, host.VhostID) {
				ctx := h.Registry.ReadContext(cid)
				fmt.Fprintf(&sb, "Context: [%d] Node: [%d] Vhost: %d Path: %s Status: %s Nbrequests: %d\n",
					cid, id, ctx.VhostID, ctx.Path, ctx.Status, ctx.NbRequests)
			}
		}
	}
	for _, id := range h.Registry.DomainsUsed() {
		d := h.Registry.ReadDomain(id)
		fmt.Fprintf(&sb, "Domain: [%d] Domain: %s Balancer: %s JVMRoute: %s\n", id, d.Domain, d.Balancer, d.JVMRoute)
	}
	for _, id := range h.Registry.SessionIDsUsed() {
		s := h.Registry.ReadSessionID(id)
		fmt.Fprintf(&sb, "SessionId: [%d] Sessionid: %s JVMRoute: %s\n", id, s.SessionID, s.JVMRoute)
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, sb.String())
}

func (h *Receiver) renderXML(w http.ResponseWriter) {
	h.Registry.LockNodes()
	defer h.Registry.UnlockNodes()

	var sb strings.Builder
	sb.WriteString("<?xml version=\"1.0\"?>\n<mod-cluster-manager>\n")
	fmt.Fprintf(&sb, "  <version>%d</version>\n", h.Registry.GetVersion())
	for _, id := range h.Registry.NodeIDsUsed() {
		n := h.Registry.ReadNode(id)
		fmt.Fprintf(&sb, "  <node id=\"%d\" jvmroute=%q balancer=%q host=%q port=%q type=%q removed=\"%v\">\n",
			id, n.JVMRoute, n.Balancer, n.Host, n.Port, n.Scheme, n.Removed)
		for _, hid := range h.Registry.HostsForNode(id) {
			host := h.Registry.ReadHost(hid)
			fmt.Fprintf(&sb, "    <host id=\"%d\" vhost=\"%d\" alias=%q>\n", hid, host.VhostID, host.Alias)
			for _, cid := range h.Registry.ContextsForNodeVhost(id, host.VhostID) {
				ctx := h.Registry.ReadContext(cid)
				fmt.Fprintf(&sb, "      <context id=\"%d\" path=%q status=%q nbrequests=\"%d\"/>\n",
					cid, ctx.Path, ctx.Status.String(), ctx.NbRequests)
			}
			sb.WriteString("    </host>\n")
		}
		sb.WriteString("  </node>\n")
	}
	sb.WriteString("</mod-cluster-manager>\n")

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, sb.String())
}
