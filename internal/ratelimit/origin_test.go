package ratelimit

import "testing"

func TestCheckOriginLoopbackBypassesAllowlist(t *testing.T) {
	g := NewOriginGuard(nil)
	d := g.CheckOrigin("127.0.0.1", "https://evil.example.org")
	if !d.Allowed {
		t.Fatalf("expected loopback caller to bypass allowlist, got deny(%s)", d.Reason)
	}
}

func TestCheckOriginMissingHeaderAllowed(t *testing.T) {
	g := NewOriginGuard(nil)
	d := g.CheckOrigin("203.0.113.9", "")
	if !d.Allowed {
		t.Fatal("expected missing Origin header to be allowed")
	}
}

func TestCheckOriginMalformedRejected(t *testing.T) {
	g := NewOriginGuard([]string{"https://app.example.com"})
	d := g.CheckOrigin("203.0.113.9", "not a url::")
	if d.Allowed {
		t.Fatal("expected malformed origin to be rejected")
	}
	if d.Reason != "invalid_origin_format" {
		t.Errorf("expected invalid_origin_format, got %q", d.Reason)
	}
}

func TestCheckOriginAlwaysAllowedHosts(t *testing.T) {
	g := NewOriginGuard(nil)
	for _, origin := range []string{
		"http://localhost:3000",
		"http://127.0.0.1:8080",
		"https://box.tailnet-1234.ts.net",
	} {
		d := g.CheckOrigin("203.0.113.9", origin)
		if !d.Allowed {
			t.Errorf("origin %q: expected allow, got deny(%s)", origin, d.Reason)
		}
	}
}

func TestCheckOriginLiteralAllowlistMatch(t *testing.T) {
	g := NewOriginGuard([]string{"https://app.example.com"})
	d := g.CheckOrigin("203.0.113.9", "https://app.example.com")
	if !d.Allowed {
		t.Fatalf("expected literal allowlist match to allow, got deny(%s)", d.Reason)
	}
}

func TestCheckOriginWildcardSuffixMatch(t *testing.T) {
	g := NewOriginGuard([]string{"*.example.com"})

	d := g.CheckOrigin("203.0.113.9", "https://staging.example.com")
	if !d.Allowed {
		t.Fatalf("expected wildcard match to allow subdomain, got deny(%s)", d.Reason)
	}

	d2 := g.CheckOrigin("203.0.113.9", "https://example.com")
	if d2.Allowed {
		t.Fatal("expected bare apex domain not to match *.example.com wildcard")
	}
}

func TestCheckOriginEmptyAllowlistRejectsUnknown(t *testing.T) {
	g := NewOriginGuard(nil)
	d := g.CheckOrigin("203.0.113.9", "https://unknown.test")
	if d.Allowed {
		t.Fatal("expected rejection with empty allowlist for non-special host")
	}
	if d.Reason != "origin_not_allowlisted" {
		t.Errorf("expected origin_not_allowlisted, got %q", d.Reason)
	}
}

func TestCheckOriginNotInAllowlistRejected(t *testing.T) {
	g := NewOriginGuard([]string{"https://app.example.com"})
	d := g.CheckOrigin("203.0.113.9", "https://other.test")
	if d.Allowed {
		t.Fatal("expected rejection for origin outside allowlist")
	}
}

func TestSetAllowlistReplacesLiveAllowlist(t *testing.T) {
	g := NewOriginGuard([]string{"https://app.example.com"})

	d := g.CheckOrigin("203.0.113.9", "https://new.example.com")
	if d.Allowed {
		t.Fatal("expected origin outside initial allowlist to be rejected")
	}

	g.SetAllowlist([]string{"https://new.example.com"})

	d2 := g.CheckOrigin("203.0.113.9", "https://new.example.com")
	if !d2.Allowed {
		t.Fatalf("expected reloaded allowlist to admit new origin, got deny(%s)", d2.Reason)
	}

	d3 := g.CheckOrigin("203.0.113.9", "https://app.example.com")
	if d3.Allowed {
		t.Fatal("expected origin dropped from reloaded allowlist to be rejected")
	}
}
