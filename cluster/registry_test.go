package cluster

import (
	"testing"

	"github.com/coreframe/clustermanager/cmn"
)

func testConfig() *cmn.Config {
	c := cmn.DefaultConfig()
	c.MaxNode = 4
	c.MaxHost = 8
	c.MaxContext = 16
	c.MaxDomain = 4
	return c
}

func mustInsertNode(t *testing.T, r *Registry, route string) int {
	t.Helper()
	id, err := r.InsertUpdateNode(&Node{JVMRoute: route, Balancer: "mycluster", Scheme: "ajp", Host: "10.0.0.1", Port: "8009", Smax: -1, TTL: 60}, -1, true)
	if err != nil {
		t.Fatalf("InsertUpdateNode(%s): %v", route, err)
	}
	return id
}

func TestFindNodeByJVMRoute(t *testing.T) {
	r := NewRegistry(testConfig())
	id1 := mustInsertNode(t, r, "node1")
	foundID, found := r.FindNodeByJVMRoute("node1")
	if foundID != id1 || found.JVMRoute != "node1" {
		t.Fatalf("FindNodeByJVMRoute = (%d, %+v)", foundID, found)
	}
}

func TestWorkerIdentityConflictDetected(t *testing.T) {
	r := NewRegistry(testConfig())
	mustInsertNode(t, r, "node1")
	candidate := &Node{JVMRoute: "node2", Balancer: "mycluster", Scheme: "ajp", Host: "10.0.0.1", Port: "8009", Smax: -1, TTL: 60}
	if _, dup := r.FindLiveNodeByWorkerTuple(candidate, -1); dup == nil {
		t.Fatal("expected a worker-identity conflict with node1")
	}
}

func TestCascadeDeleteOnRemoveNode(t *testing.T) {
	r := NewRegistry(testConfig())
	id := mustInsertNode(t, r, "node1")
	hid, err := r.InsertHost(&Host{NodeID: id, VhostID: 1, Alias: "example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.InsertContext(&Context{NodeID: id, VhostID: 1, Path: "/app", Status: CtxStopped}); err != nil {
		t.Fatal(err)
	}
	r.RemoveNode(id)
	if r.ReadHost(hid) != nil {
		t.Error("expected host to be cascade-deleted")
	}
	if len(r.ContextsForNode(id)) != 0 {
		t.Error("expected contexts to be cascade-deleted")
	}
	if r.ReadNode(id) != nil {
		t.Error("expected node slot to be freed")
	}
}

func TestVersionMonotonicity(t *testing.T) {
	r := NewRegistry(testConfig())
	before := r.GetVersion()
	r.IncVersion()
	if r.GetVersion() <= before {
		t.Fatalf("version did not advance: before=%d after=%d", before, r.GetVersion())
	}
}

func TestNodeTableFullIsMemError(t *testing.T) {
	conf := testConfig()
	conf.MaxNode = 1
	r := NewRegistry(conf)
	mustInsertNode(t, r, "node1")
	_, err := r.InsertUpdateNode(&Node{JVMRoute: "node2"}, -1, true)
	if err == nil {
		t.Fatal("expected a MEM error on capacity exhaustion")
	}
	mErr := cmn.AsMCMPError(err)
	if mErr.Kind != cmn.Mem {
		t.Fatalf("got kind %v, want MEM", mErr.Kind)
	}
}

func TestVhostIDDensity(t *testing.T) {
	r := NewRegistry(testConfig())
	id := mustInsertNode(t, r, "node1")
	v1 := r.NextVhostID(id)
	if v1 != 1 {
		t.Fatalf("first vhost id = %d, want 1", v1)
	}
	if _, err := r.InsertHost(&Host{NodeID: id, VhostID: v1, Alias: "a.com"}); err != nil {
		t.Fatal(err)
	}
	v2 := r.NextVhostID(id)
	if v2 != 2 {
		t.Fatalf("second vhost id = %d, want 2 (density prefix broken)", v2)
	}
}

func TestReapTombstonesFreesSlotAfterThreshold(t *testing.T) {
	r := NewRegistry(testConfig())
	id := mustInsertNode(t, r, "node1")
	r.TombstoneNode(id)

	before := r.GetVersion()
	var freed []int
	for i := 0; i <= removeCheckThreshold+1 && len(freed) == 0; i++ {
		freed = r.ReapTombstones()
	}
	if len(freed) != 1 || freed[0] != id {
		t.Fatalf("ReapTombstones freed %v, want [%d]", freed, id)
	}
	if r.ReadNode(id) != nil {
		t.Error("expected the reaped slot to be empty")
	}
	if r.GetVersion() <= before {
		t.Error("expected a version bump when a slot is freed")
	}
}

func TestReapTombstonesSkipsNodesWithDependents(t *testing.T) {
	r := NewRegistry(testConfig())
	id := mustInsertNode(t, r, "node1")
	if _, err := r.InsertHost(&Host{NodeID: id, VhostID: 1, Alias: "a.com"}); err != nil {
		t.Fatal(err)
	}
	r.TombstoneNode(id)

	for i := 0; i <= removeCheckThreshold+1; i++ {
		if freed := r.ReapTombstones(); len(freed) != 0 {
			t.Fatalf("pass %d freed %v despite a live dependent host", i, freed)
		}
	}
	if r.ReadNode(id) == nil {
		t.Fatal("tombstoned node with dependents must keep its slot")
	}
}

func TestUpsertDomainIsKeyedOnTuple(t *testing.T) {
	r := NewRegistry(testConfig())
	d := &Domain{UUID: "u1", Domain: "d1", Balancer: "mycluster", JVMRoute: "node1"}
	id1, err := r.UpsertDomain(d)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := r.UpsertDomain(&Domain{UUID: "u2", Domain: "d1", Balancer: "mycluster", JVMRoute: "node1"})
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("same (domain, balancer, route) allocated two rows: %d and %d", id1, id2)
	}
	if got := r.ReadDomain(id1); got.UUID != "u1" {
		t.Errorf("upsert replaced the correlation id: got %q, want the original", got.UUID)
	}
	id3, err := r.UpsertDomain(&Domain{UUID: "u3", Domain: "d1", Balancer: "mycluster", JVMRoute: "node2"})
	if err != nil {
		t.Fatal(err)
	}
	if id3 == id1 {
		t.Fatal("a different JVMRoute must get its own domain row")
	}
}

func TestRecordSessionIDUpsertsObservation(t *testing.T) {
	r := NewRegistry(testConfig())
	r.RecordSessionID("abc123", "node1")
	r.RecordSessionID("abc123", "node2")
	used := r.SessionIDsUsed()
	if len(used) != 1 {
		t.Fatalf("got %d session rows, want 1", len(used))
	}
	if s := r.ReadSessionID(used[0]); s.JVMRoute != "node2" {
		t.Errorf("got route %q, want the latest observation node2", s.JVMRoute)
	}
}

func TestTombstoneAndReviveNode(t *testing.T) {
	r := NewRegistry(testConfig())
	id := mustInsertNode(t, r, "node1")
	r.TombstoneNode(id)
	n := r.ReadNode(id)
	if !n.Removed || n.JVMRoute != RemovedRoute {
		t.Fatalf("expected tombstoned node, got %+v", n)
	}
	r.ReviveNode(id, "node2")
	n = r.ReadNode(id)
	if n.Removed || n.JVMRoute != "node2" {
		t.Fatalf("expected revived node with new route, got %+v", n)
	}
}
