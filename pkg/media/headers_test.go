package media

import (
	"net/http"
	"strings"
	"testing"
)

func TestForwardHeadersDropsContentKeys(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Content-Length", "42")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Authorization", "Bearer token")
	h.Set("Cookie", "session=abc")
	h.Add("Accept", "image/png")
	h.Add("Accept", "image/jpeg")
	// bypass canonicalization to exercise odd casings
	h["conTENT-custom"] = []string{"x"}

	out := ForwardHeaders(h)

	for key := range out {
		if strings.Contains(strings.ToLower(key), "content") {
			t.Fatalf("header %q leaked through the filter", key)
		}
	}
	if got := out.Get("Authorization"); got != "Bearer token" {
		t.Fatalf("authorization = %q, want the original value", got)
	}
	if got := out.Get("Cookie"); got != "session=abc" {
		t.Fatalf("cookie = %q, want the original value", got)
	}
	if got := out["Accept"]; len(got) != 2 {
		t.Fatalf("expected both accept values, got %v", got)
	}
}

func TestForwardHeadersCopies(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer token")

	out := ForwardHeaders(h)
	out.Set("Authorization", "changed")
	out.Set("Extra", "new")

	if got := h.Get("Authorization"); got != "Bearer token" {
		t.Fatalf("original mutated to %q", got)
	}
	if h.Get("Extra") != "" {
		t.Fatalf("new key leaked into the original")
	}
}
