package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/rohmanhakim/archivist/internal/robots/cache"
	"github.com/rohmanhakim/archivist/pkg/retry"
	"github.com/rohmanhakim/archivist/pkg/timeutil"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache each host's robots.txt body for a bounded TTL
- Answer allow/disallow before a claimed URL is fetched

Failure policy: a robots.txt that cannot be fetched fails open. The
archive's job is capture; an unreachable policy file must not stall a
domain forever. Explicit disallow rules are honored.
*/

type Robot interface {
	Decide(ctx context.Context, target url.URL) Decision
}

type Decision struct {
	Allowed bool
}

const cacheTTL = time.Hour

type CachedRobot struct {
	userAgent  string
	httpClient *http.Client
	cache      cache.Cache
	retryParam retry.RetryParam
}

func NewCachedRobot(userAgent string, httpClient *http.Client) CachedRobot {
	return CachedRobot{
		userAgent:  userAgent,
		httpClient: httpClient,
		cache:      cache.NewMemoryCache(),
		retryParam: retry.NewRetryParam(
			100*time.Millisecond,
			time.Now().UnixNano(),
			3,
			timeutil.NewBackoffParam(200*time.Millisecond, 2.0, 2*time.Second),
		),
	}
}

// Decide answers whether target may be fetched under its host's
// robots.txt rules.
func (r *CachedRobot) Decide(ctx context.Context, target url.URL) Decision {
	rules := r.rulesForHost(ctx, target.Scheme, target.Host)
	return Decision{Allowed: isAllowed(rules, target.Path)}
}

func (r *CachedRobot) rulesForHost(ctx context.Context, scheme, host string) []string {
	if cached, ok := r.cache.Get(host); ok {
		return parseDisallowRules(cached, r.userAgent)
	}

	body, err := retry.Retry(r.retryParam, func() (string, failureError) {
		return r.fetchRobotsTxt(ctx, scheme, host)
	})
	if err != nil {
		// fail open: no rules
		logrus.WithError(err).WithField("host", host).Warn("robots.txt fetch failed, allowing")
		r.cache.Put(host, "", cacheTTL)
		return nil
	}

	r.cache.Put(host, body, cacheTTL)
	return parseDisallowRules(body, r.userAgent)
}

func (r *CachedRobot) fetchRobotsTxt(ctx context.Context, scheme, host string) (string, failureError) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return "", &RobotsError{Message: err.Error(), Retryable: false, Cause: ErrCauseFetchFailure}
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", &RobotsError{Message: err.Error(), Retryable: true, Cause: ErrCauseFetchFailure}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// missing robots.txt means no restrictions
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return "", &RobotsError{Message: err.Error(), Retryable: true, Cause: ErrCauseFetchFailure}
	}
	return string(body), nil
}

// parseDisallowRules extracts the Disallow path prefixes that apply to
// userAgent (exact product token match or the * group).
func parseDisallowRules(robotsTxt, userAgent string) []string {
	var rules []string
	applies := false
	product := productToken(userAgent)

	for _, line := range strings.Split(robotsTxt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		field, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)

		switch field {
		case "user-agent":
			applies = value == "*" || strings.EqualFold(value, product)
		case "disallow":
			if applies && value != "" {
				rules = append(rules, value)
			}
		}
	}
	return rules
}

func isAllowed(disallowRules []string, path string) bool {
	if path == "" {
		path = "/"
	}
	for _, rule := range disallowRules {
		if strings.HasPrefix(path, rule) {
			return false
		}
	}
	return true
}

// productToken strips the version/comment tail of a user agent string.
func productToken(userAgent string) string {
	if slash := strings.IndexByte(userAgent, '/'); slash > 0 {
		return userAgent[:slash]
	}
	return userAgent
}
