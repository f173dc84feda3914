package store

import "testing"

func TestEdgeHashDeterministic(t *testing.T) {
	h1 := EdgeHash("a", "FOUNDED_BY", "b", map[string]any{"x": 1, "y": 2})
	h2 := EdgeHash("a", "FOUNDED_BY", "b", map[string]any{"y": 2, "x": 1})
	if h1 != h2 {
		t.Fatalf("expected key-order-independent hash, got %s != %s", h1, h2)
	}
}

func TestEdgeHashSensitiveToEndpoints(t *testing.T) {
	h1 := EdgeHash("a", "FOUNDED_BY", "b", nil)
	h2 := EdgeHash("a", "FOUNDED_BY", "c", nil)
	if h1 == h2 {
		t.Fatalf("expected different hashes for different targets")
	}
}

func TestNormalizeRelation(t *testing.T) {
	cases := map[string]string{
		"founded-by":  "FOUNDED_BY",
		"CEO of":      "CEO_OF",
		" acquired  ": "ACQUIRED",
	}
	for in, want := range cases {
		if got := NormalizeRelation(in); got != want {
			t.Errorf("NormalizeRelation(%q) = %q, want %q", in, got, want)
		}
	}
}
