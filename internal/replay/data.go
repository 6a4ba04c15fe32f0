package replay

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Prefix is the path prefix of time-travel URLs. The path after the
// timestamp segment is the verbatim original URL, not URL-encoded as a
// whole.
const Prefix = "/at"

// timestampLayout is YYYYMMDDHHMMSS in UTC.
const timestampLayout = "20060102150405"

// ReplayURL addresses one archived instant of one URL.
type ReplayURL struct {
	instant     time.Time
	originalURL string
}

// ParseReplayURL validates a timestamp segment and original URL.
func ParseReplayURL(timestampStr, urlStr string) (ReplayURL, error) {
	instant, err := time.ParseInLocation(timestampLayout, timestampStr, time.UTC)
	if err != nil {
		return ReplayURL{}, fmt.Errorf("bad timestamp %q: %w", timestampStr, err)
	}
	if _, err := url.Parse(urlStr); err != nil {
		return ReplayURL{}, fmt.Errorf("bad url %q: %w", urlStr, err)
	}
	return ReplayURL{
		instant:     instant,
		originalURL: urlStr,
	}, nil
}

func NewReplayURL(instant time.Time, originalURL string) ReplayURL {
	return ReplayURL{
		instant:     instant.UTC(),
		originalURL: originalURL,
	}
}

func (r *ReplayURL) Instant() time.Time {
	return r.instant
}

func (r *ReplayURL) OriginalURL() string {
	return r.originalURL
}

// Format renders the replay path: /at/<YYYYMMDDHHMMSS>/<original url>.
func (r *ReplayURL) Format() string {
	return fmt.Sprintf("%s/%s/%s", Prefix, r.instant.UTC().Format(timestampLayout), r.originalURL)
}

// splitReplayPath splits a request path into timestamp and verbatim
// URL segments. Returns false when the path is not a replay path.
func splitReplayPath(path string) (timestampStr, urlStr string, ok bool) {
	rest, found := strings.CutPrefix(path, Prefix+"/")
	if !found {
		return "", "", false
	}
	timestampStr, urlStr, found = strings.Cut(rest, "/")
	if !found || timestampStr == "" || urlStr == "" {
		return "", "", false
	}
	return timestampStr, urlStr, true
}

// Response is a replayed snapshot ready to emit: the original status,
// the media type (coerced to text/html for rewritten bodies), and the
// payload.
type Response struct {
	Status    int
	MediaType string
	Body      []byte
}
