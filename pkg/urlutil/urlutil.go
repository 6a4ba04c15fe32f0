package urlutil

import "net/url"

// Canonicalize applies a deterministic normalization to a URL, producing a canonical form.
// It maps equivalent URL spellings to a single canonical representation.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Trailing slashes are removed from the path, except for root "/"
//   - Fragments are removed
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
//   - Context-free: does not depend on crawl history
//
// Unlike a search deduplicator, the archive keeps query strings: two URLs
// that differ in their query are two distinct archived resources.
func Canonicalize(sourceUrl url.URL) url.URL {
	// Create a copy to avoid mutating the original
	canonical := sourceUrl

	// Lowercase scheme and host
	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	// Remove default port if present
	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	// Clean the path: remove trailing slashes (except root)
	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
	}

	// Remove fragment (anchor)
	canonical.Fragment = ""
	canonical.RawFragment = ""

	return canonical
}

// Domain extracts the full host name (without port) of a raw URL string,
// lowercased.
// Returns "" when the URL does not parse or has no host.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return lowerASCII(u.Hostname())
}

// ResolveRef resolves ref against base using standard URL resolution
// and returns the absolute result. Relative refs, absolute paths, and
// already-absolute URLs are all handled by url.Parse semantics.
func ResolveRef(base url.URL, ref string) (url.URL, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return url.URL{}, err
	}
	resolved := base.ResolveReference(parsed)
	return *resolved, nil
}

// lowerASCII converts ASCII characters to lowercase, allocating only
// when s contains an uppercase letter.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
