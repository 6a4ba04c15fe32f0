package urlutil_test

import (
	"net/url"
	"testing"

	"github.com/rohmanhakim/archivist/pkg/urlutil"
)

func parse(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return *u
}

func TestCanonicalizeLowercasesSchemeAndHost(t *testing.T) {
	got := urlutil.Canonicalize(parse(t, "HTTPS://Example.COM/Path"))
	if got.Scheme != "https" || got.Host != "example.com" {
		t.Errorf("got %s://%s, want https://example.com", got.Scheme, got.Host)
	}
	if got.Path != "/Path" {
		t.Errorf("path must keep its case, got %q", got.Path)
	}
}

func TestCanonicalizeDropsDefaultPorts(t *testing.T) {
	cases := map[string]string{
		"http://example.com:80/a":   "http://example.com/a",
		"https://example.com:443/a": "https://example.com/a",
		"http://example.com:8080/a": "http://example.com:8080/a",
	}
	for in, want := range cases {
		got := urlutil.Canonicalize(parse(t, in))
		if got.String() != want {
			t.Errorf("Canonicalize(%q) = %q, want %q", in, got.String(), want)
		}
	}
}

func TestCanonicalizeStripsFragmentKeepsQuery(t *testing.T) {
	got := urlutil.Canonicalize(parse(t, "https://example.com/a?page=2#section"))
	if got.String() != "https://example.com/a?page=2" {
		t.Errorf("got %q", got.String())
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	once := urlutil.Canonicalize(parse(t, "HTTP://Example.com:80/a/b///#x"))
	twice := urlutil.Canonicalize(once)
	if once.String() != twice.String() {
		t.Errorf("not idempotent: %q vs %q", once.String(), twice.String())
	}
}

func TestDomain(t *testing.T) {
	cases := map[string]string{
		"https://Example.COM/path":   "example.com",
		"http://sub.example.com:99/": "sub.example.com",
		"not a url ::":               "",
	}
	for in, want := range cases {
		if got := urlutil.Domain(in); got != want {
			t.Errorf("Domain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveRef(t *testing.T) {
	base := parse(t, "https://example.com/dir/page.html")

	cases := map[string]string{
		"/abs":                     "https://example.com/abs",
		"sibling.html":             "https://example.com/dir/sibling.html",
		"../up.html":               "https://example.com/up.html",
		"https://other.example/x":  "https://other.example/x",
		"//protocol.relative/path": "https://protocol.relative/path",
	}
	for ref, want := range cases {
		got, err := urlutil.ResolveRef(base, ref)
		if err != nil {
			t.Fatalf("ResolveRef(%q): %v", ref, err)
		}
		if got.String() != want {
			t.Errorf("ResolveRef(%q) = %q, want %q", ref, got.String(), want)
		}
	}
}
