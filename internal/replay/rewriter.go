package replay

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/archivist/pkg/urlutil"
)

/*
Responsibilities
- Rewrite URL-bearing attributes so an archived page stays inside the
  archive when viewed

Attributes handled: a[href], img[src], script[src], link[href],
form[action]. Everything else passes through untouched. Input encoding
errors are tolerated: the parser substitutes and moves on.

Rewriting is idempotent: attribute values already under the replay
prefix are left alone, so a double pass is a no-op.
*/

type Rewriter struct {
	instant time.Time
	baseURL url.URL
}

// NewRewriter binds the rewriter to one snapshot: its capture instant
// and its own URL (the base for relative resolution).
func NewRewriter(instant time.Time, baseURL url.URL) Rewriter {
	return Rewriter{
		instant: instant.UTC(),
		baseURL: baseURL,
	}
}

// attribute targets, per element selector
var rewriteTargets = []struct {
	selector string
	attr     string
}{
	{"a[href]", "href"},
	{"link[href]", "href"},
	{"img[src]", "src"},
	{"script[src]", "src"},
	{"form[action]", "action"},
}

// RewriteHTML transforms the document and returns the serialized
// result. Unparseable input comes back best-effort: whatever the
// parser recovered is rewritten and rendered.
func (r *Rewriter) RewriteHTML(body []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for _, target := range rewriteTargets {
		attr := target.attr
		doc.Find(target.selector).Each(func(_ int, sel *goquery.Selection) {
			value, ok := sel.Attr(attr)
			if !ok {
				return
			}
			sel.SetAttr(attr, r.rewriteURL(value))
		})
	}

	rendered, err := doc.Html()
	if err != nil {
		return nil, err
	}
	return []byte(rendered), nil
}

// rewriteURL maps one attribute value to its replay form. Values that
// are not navigable resources (data:, javascript:, fragments) and
// values already inside the archive are returned unchanged, as is
// anything that fails URL resolution.
func (r *Rewriter) rewriteURL(value string) string {
	if strings.HasPrefix(value, "data:") ||
		strings.HasPrefix(value, "javascript:") ||
		strings.HasPrefix(value, "#") ||
		strings.HasPrefix(value, Prefix+"/") {
		return value
	}

	absolute, err := urlutil.ResolveRef(r.baseURL, value)
	if err != nil {
		return value
	}

	replay := NewReplayURL(r.instant, absolute.String())
	return replay.Format()
}
