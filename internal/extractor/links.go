package extractor

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/archivist/pkg/failure"
	"github.com/rohmanhakim/archivist/pkg/urlutil"
)

/*
Responsibilities
- Parse HTML into a DOM tree
- Collect outbound hyperlinks and resolve them against the page URL

Only http(s) links survive; fragments, javascript: and data: schemes,
and mailto: are discovery noise. Deduplication happens here per page;
cross-page dedup is the frontier's unique-URL constraint.
*/

type LinkExtractor struct{}

func NewLinkExtractor() LinkExtractor {
	return LinkExtractor{}
}

// ExtractLinks returns the absolute, canonicalized URLs referenced by
// a[href] elements in body, resolved against pageURL.
func (e *LinkExtractor) ExtractLinks(pageURL url.URL, body []byte) ([]url.URL, failure.ClassifiedError) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ExtractionError{
			Message: err.Error(),
			Cause:   ErrCauseParseFailure,
		}
	}

	seen := make(map[string]struct{})
	var links []url.URL

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "data:") ||
			strings.HasPrefix(href, "mailto:") {
			return
		}

		resolved, err := urlutil.ResolveRef(pageURL, href)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}

		canonical := urlutil.Canonicalize(resolved)
		key := canonical.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, canonical)
	})

	return links, nil
}
