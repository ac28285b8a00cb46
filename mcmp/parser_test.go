package mcmp

import "testing"

func TestParseOrderAndRepeats(t *testing.T) {
	pairs, err := Parse("JVMRoute=node1&Alias=a.com,b.com&Context=/app&Alias=c.com&Context=/app2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Pair{
		{"JVMRoute", "node1"},
		{"Alias", "a.com,b.com"},
		{"Context", "/app"},
		{"Alias", "c.com"},
		{"Context", "/app2"},
	}
	if len(pairs) != len(want) {
		t.Fatalf("got %d pairs, want %d: %+v", len(pairs), len(want), pairs)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pair %d = %+v, want %+v", i, pairs[i], want[i])
		}
	}
}

func TestParsePercentDecode(t *testing.T) {
	pairs, err := Parse("Host=10.0.0.1&Alias=my%2Dhost.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pairs[1].Value != "my-host.com" {
		t.Errorf("got %q, want %q", pairs[1].Value, "my-host.com")
	}
}

func TestParseRejectsForbiddenChars(t *testing.T) {
	cases := []string{
		"JVMRoute=node%3C1",    // <
		"JVMRoute=node%3E1",    // >
		"JVMRoute=node%221",    // "
		"JVMRoute=node%271",    // '
		"JVMRoute=node%0D1",    // CR
		"JVMRoute=node%0A1",    // LF
	}
	for _, body := range cases {
		if _, err := Parse(body); err == nil {
			t.Errorf("Parse(%q): expected SYNTAX error, got none", body)
		}
	}
}

func TestParseEmptyBody(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestParseTrailingEmptyPair(t *testing.T) {
	if _, err := Parse("JVMRoute=node1&"); err == nil {
		t.Error("expected error for trailing empty pair")
	}
	if _, err := Parse("JVMRoute=node1&&Host=x"); err == nil {
		t.Error("expected error for doubled separator")
	}
}

func TestParseDanglingKey(t *testing.T) {
	if _, err := Parse("JVMRoute=node1&Host"); err == nil {
		t.Error("expected error for key with no value")
	}
}

func TestParseBadPercentEncoding(t *testing.T) {
	cases := []string{
		"JVMRoute=node%2",  // truncated
		"JVMRoute=node%zz", // non-hex
	}
	for _, body := range cases {
		if _, err := Parse(body); err == nil {
			t.Errorf("Parse(%q): expected error, got none", body)
		}
	}
}

func TestParseRejectsLiteralEquals(t *testing.T) {
	if _, err := Parse("JVMRoute=node=1"); err == nil {
		t.Error("expected error for literal '=' inside a value")
	}
}

func TestAsMapCaseInsensitiveLastWins(t *testing.T) {
	pairs, err := Parse("jvmroute=a&JVMRoute=b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := AsMap(pairs)
	if m["JVMROUTE"] != "b" {
		t.Errorf("got %q, want %q", m["JVMROUTE"], "b")
	}
}
