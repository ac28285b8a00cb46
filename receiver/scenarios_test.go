package receiver

import (
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/coreframe/clustermanager/cluster"
	"github.com/coreframe/clustermanager/cmn"
)

// newTestReceiver builds a Receiver with an in-memory (unpersisted)
// store and a small registry, sized small enough to exercise
// table-full behavior with few requests.
func newTestReceiver(maxNode int) *Receiver {
	conf := cmn.DefaultConfig()
	conf.MaxNode = maxNode
	conf.MaxHost = 20
	conf.MaxContext = 100
	reg := cluster.NewRegistry(conf)
	store, _ := cluster.OpenStore("")
	rec := cluster.NewMemReconciler(maxNode)
	return New(reg, store, rec, conf)
}

func doMCMP(h *Receiver, verb, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(verb, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var _ = Describe("MCMP end-to-end scenarios", func() {
	It("registers a fresh node with its alias and context", func() {
		h := newTestReceiver(20)
		rec := doMCMP(h, "CONFIG", "/", "JVMRoute=node1&Host=10.0.0.1&Port=8009&Type=ajp&Alias=example.com&Context=/app")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(BeEmpty())

		id, n := h.Registry.FindNodeByJVMRoute("node1")
		Expect(n).NotTo(BeNil())
		hostIDs := h.Registry.HostsForNode(id)
		Expect(hostIDs).To(HaveLen(1))
		host := h.Registry.ReadHost(hostIDs[0])
		Expect(host.VhostID).To(Equal(1))
		Expect(host.Alias).To(Equal("example.com"))

		ctxIDs := h.Registry.ContextsForNodeVhost(id, 1)
		Expect(ctxIDs).To(HaveLen(1))
		ctx := h.Registry.ReadContext(ctxIDs[0])
		Expect(ctx.Path).To(Equal("/app"))
		Expect(ctx.Status).To(Equal(cluster.CtxStopped))
	})

	It("tombstones a JVMRoute reused at a different endpoint", func() {
		h := newTestReceiver(20)
		doMCMP(h, "CONFIG", "/", "JVMRoute=node1&Host=10.0.0.1&Port=8009&Type=ajp")
		firstID, _ := h.Registry.FindNodeByJVMRoute("node1")
		before := h.Registry.GetVersion()

		rec := doMCMP(h, "CONFIG", "/", "JVMRoute=node1&Host=10.0.0.2&Port=8009&Type=ajp")

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Header().Get("Type")).To(Equal(string(cmn.Mem)))
		Expect(h.Registry.GetVersion()).To(BeNumerically(">", before))

		// the tombstone keeps its slot but no longer carries the old route.
		stillThere := h.Registry.ReadNode(firstID)
		Expect(stillThere).NotTo(BeNil())
		Expect(stillThere.Removed).To(BeTrue())
		Expect(stillThere.JVMRoute).To(Equal(cluster.RemovedRoute))
	})

	It("reuses a tombstoned slot at a matching endpoint", func() {
		h := newTestReceiver(20)
		doMCMP(h, "CONFIG", "/", "JVMRoute=node1&Host=10.0.0.1&Port=8009&Type=ajp")
		firstID, _ := h.Registry.FindNodeByJVMRoute("node1")
		doMCMP(h, "CONFIG", "/", "JVMRoute=node1&Host=10.0.0.2&Port=8009&Type=ajp")

		rec := doMCMP(h, "CONFIG", "/", "JVMRoute=node2&Host=10.0.0.1&Port=8009&Type=ajp")
		Expect(rec.Code).To(Equal(http.StatusOK))

		reusedID, node2 := h.Registry.FindNodeByJVMRoute("node2")
		Expect(reusedID).To(Equal(firstID))
		Expect(node2.Removed).To(BeFalse())
	})

	It("runs the enable/stop/remove lifecycle", func() {
		h := newTestReceiver(20)
		doMCMP(h, "CONFIG", "/", "JVMRoute=node1&Host=10.0.0.1&Port=8009&Type=ajp&Alias=example.com&Context=/app")

		enableRec := doMCMP(h, "ENABLE-APP", "/", "JVMRoute=node1&Alias=example.com&Context=/app")
		Expect(enableRec.Code).To(Equal(http.StatusOK))
		id, _ := h.Registry.FindNodeByJVMRoute("node1")
		cid, ctx := h.Registry.FindContext(id, 1, "/app")
		Expect(ctx.Status).To(Equal(cluster.CtxEnabled))

		stopRec := doMCMP(h, "STOP-APP", "/", "JVMRoute=node1&Alias=example.com&Context=/app")
		Expect(stopRec.Code).To(Equal(http.StatusOK))
		Expect(stopRec.Body.String()).To(Equal("Type=STOP-APP-RSP&JvmRoute=node1&Alias=example.com&Context=/app&Requests=0"))
		_, ctx = h.Registry.FindContext(id, 1, "/app")
		Expect(ctx.Status).To(Equal(cluster.CtxStopped))

		removeRec := doMCMP(h, "REMOVE-APP", "/", "JVMRoute=node1&Alias=example.com&Context=/app")
		Expect(removeRec.Code).To(Equal(http.StatusOK))
		_, gone := h.Registry.FindContext(id, 1, "/app")
		Expect(gone).To(BeNil())
		Expect(h.Registry.HostsForNode(id)).To(BeEmpty())
		_ = cid
	})

	It("rejects a bad percent-decode without mutating state", func() {
		h := newTestReceiver(20)
		before := h.Registry.GetVersion()

		rec := doMCMP(h, "CONFIG", "/", "JVMRoute=node%3C1&Host=10.0.0.1&Port=8009&Type=ajp")

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Header().Get("Type")).To(Equal(string(cmn.Syntax)))
		Expect(h.Registry.GetVersion()).To(Equal(before))
		Expect(h.Registry.NodeIDsUsed()).To(BeEmpty())
	})

	It("tombstones on node-scope REMOVE-APP and reaps the slot lazily", func() {
		h := newTestReceiver(20)
		doMCMP(h, "CONFIG", "/", "JVMRoute=node1&Host=10.0.0.1&Port=8009&Type=ajp&Alias=example.com&Context=/app")
		id, _ := h.Registry.FindNodeByJVMRoute("node1")

		rec := doMCMP(h, "REMOVE-APP", "/*", "JVMRoute=node1&Alias=example.com&Context=/app")
		Expect(rec.Code).To(Equal(http.StatusOK))

		n := h.Registry.ReadNode(id)
		Expect(n.Removed).To(BeTrue())
		Expect(n.JVMRoute).To(Equal(cluster.RemovedRoute))
		Expect(h.Registry.HostsForNode(id)).To(BeEmpty())
		Expect(h.Registry.ContextsForNode(id)).To(BeEmpty())

		// the watchdog frees the slot only after the remove-check
		// counter passes its threshold.
		var freed []int
		for i := 0; i < 10 && len(freed) == 0; i++ {
			freed = h.Registry.ReapTombstones()
		}
		Expect(freed).To(Equal([]int{id}))
		Expect(h.Registry.ReadNode(id)).To(BeNil())
	})

	It("reports MEM and leaves the table untouched on capacity exhaustion", func() {
		h := newTestReceiver(1)
		doMCMP(h, "CONFIG", "/", "JVMRoute=nodeA&Host=10.0.0.1&Port=8009&Type=ajp")
		before := h.Registry.GetVersion()

		rec := doMCMP(h, "CONFIG", "/", "JVMRoute=nodeB&Host=10.0.0.2&Port=8010&Type=ajp")

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Header().Get("Type")).To(Equal(string(cmn.Mem)))
		Expect(h.Registry.GetVersion()).To(Equal(before))

		_, a := h.Registry.FindNodeByJVMRoute("nodeA")
		Expect(a).NotTo(BeNil())
		Expect(a.Removed).To(BeFalse())
	})
})
