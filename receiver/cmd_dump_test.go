package receiver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestVersionResponse(t *testing.T) {
	h := newTestReceiver(20)
	rec := doMCMP(h, "VERSION", "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Type=VERSION-RSP") || !strings.Contains(body, "Protocol="+ProtocolVersion) || !strings.Contains(body, "Release="+ReleaseString) {
		t.Fatalf("got %q, missing expected VERSION-RSP fields", body)
	}
}

func TestDumpPlainByDefault(t *testing.T) {
	h := newTestReceiver(20)
	doMCMP(h, "CONFIG", "/", "JVMRoute=node1&Host=10.0.0.1&Port=8009&Type=ajp&Alias=example.com&Context=/app")

	req := httptest.NewRequest("DUMP", "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("got Content-Type=%q, want text/plain", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "JVMRoute: node1") {
		t.Fatalf("got %q, missing node1 in plain dump", rec.Body.String())
	}
}

func TestDumpXMLWhenRequested(t *testing.T) {
	h := newTestReceiver(20)
	doMCMP(h, "CONFIG", "/", "JVMRoute=node1&Host=10.0.0.1&Port=8009&Type=ajp&Alias=example.com&Context=/app")

	req := httptest.NewRequest("INFO", "/", nil)
	req.Header.Set("Accept", "text/xml")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/xml") {
		t.Fatalf("got Content-Type=%q, want text/xml", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), `jvmroute="node1"`) {
		t.Fatalf("got %q, missing node1 in xml dump", rec.Body.String())
	}
}
