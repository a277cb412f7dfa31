package qrlogin

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"qzlogin/internal/credstore"
)

// sessionJar is the cookie jar of one login session. Request-time cookie
// selection is delegated to net/http/cookiejar; every cookie the server sets
// is also recorded with its attributes so the whole jar can be snapshotted,
// which cookiejar.Jar cannot enumerate.
type sessionJar struct {
	inner *cookiejar.Jar
	now   func() time.Time

	mu      sync.Mutex
	entries []credstore.Cookie
}

func newSessionJar(now func() time.Time) (*sessionJar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &sessionJar{inner: inner, now: now}, nil
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.inner.SetCookies(u, cookies)

	now := j.now()
	host := strings.ToLower(u.Hostname())
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		domain, hostOnly, ok := cookieDomain(host, c.Domain)
		if !ok {
			// cookiejar drops it too; the snapshot must match what is sent.
			continue
		}
		entry := credstore.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			HostOnly: hostOnly,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			SameSite: sameSiteName(c.SameSite),
		}
		if entry.Path == "" || !strings.HasPrefix(entry.Path, "/") {
			entry.Path = defaultCookiePath(u.Path)
		}

		expired := false
		switch {
		case c.MaxAge < 0:
			expired = true
		case c.MaxAge > 0:
			entry.Expires = now.Add(time.Duration(c.MaxAge) * time.Second).UTC()
		case !c.Expires.IsZero():
			entry.Expires = c.Expires.UTC()
			expired = !c.Expires.After(now)
		}

		j.upsertLocked(entry, expired)
	}
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// Snapshot copies every recorded cookie in the order it was first set.
func (j *sessionJar) Snapshot() []credstore.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]credstore.Cookie, len(j.entries))
	copy(out, j.entries)
	return out
}

func (j *sessionJar) upsertLocked(entry credstore.Cookie, remove bool) {
	for i, e := range j.entries {
		// Same identity as a cookiejar entry: a domain cookie replaces a
		// host-only one of the same name and path, and vice versa.
		if e.Name != entry.Name || e.Domain != entry.Domain || e.Path != entry.Path {
			continue
		}
		if remove {
			j.entries = append(j.entries[:i], j.entries[i+1:]...)
		} else {
			j.entries[i] = entry
		}
		return
	}
	if !remove {
		j.entries = append(j.entries, entry)
	}
}

// cookieDomain applies the domain rules of net/http/cookiejar to a Domain
// attribute set by host. ok is false when cookiejar would reject the cookie.
func cookieDomain(host, attr string) (domain string, hostOnly bool, ok bool) {
	if attr == "" {
		return host, true, true
	}
	if net.ParseIP(host) != nil {
		return host, true, host == attr
	}

	domain = strings.ToLower(strings.TrimPrefix(attr, "."))
	if domain == "" || domain[0] == '.' || domain[len(domain)-1] == '.' {
		return "", false, false
	}

	if ps, _ := publicsuffix.PublicSuffix(domain); ps != "" && !hasDotSuffix(domain, ps) {
		// A Domain attribute naming a public suffix only survives as a
		// host-only cookie of that exact host.
		if host == domain {
			return host, true, true
		}
		return "", false, false
	}

	if host != domain && !hasDotSuffix(host, domain) {
		return "", false, false
	}
	return domain, false, true
}

func hasDotSuffix(s, suffix string) bool {
	return len(s) > len(suffix) && s[len(s)-len(suffix)-1] == '.' && s[len(s)-len(suffix):] == suffix
}

// defaultCookiePath is the RFC 6265 section 5.1.4 default-path of a request path.
func defaultCookiePath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return ""
	}
}
