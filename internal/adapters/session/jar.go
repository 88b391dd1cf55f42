package session

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// storedCookie keeps the attributes http.CookieJar.Cookies drops, so the
// session can be exported for GDAL.
type storedCookie struct {
	Domain   string
	HostOnly bool
	Path     string
	Secure   bool
	Expires  time.Time // zero for session cookies
	Name     string
	Value    string
}

func (c storedCookie) key() string {
	return c.Domain + ";" + c.Path + ";" + c.Name
}

// recordingJar delegates to a standard cookie jar and remembers every cookie it accepts.
type recordingJar struct {
	inner http.CookieJar

	mu      sync.Mutex
	cookies map[string]storedCookie
	now     func() time.Time
}

func newRecordingJar(inner http.CookieJar) *recordingJar {
	return &recordingJar{
		inner:   inner,
		cookies: make(map[string]storedCookie),
		now:     time.Now,
	}
}

// SetCookies implements http.CookieJar.
func (j *recordingJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	for _, c := range cookies {
		sc := storedCookie{
			Domain:   strings.TrimPrefix(strings.ToLower(c.Domain), "."),
			Path:     c.Path,
			Secure:   c.Secure,
			Name:     c.Name,
			Value:    c.Value,
			HostOnly: c.Domain == "",
		}
		host := strings.ToLower(u.Hostname())
		if sc.HostOnly {
			sc.Domain = host
		} else if host != sc.Domain && !strings.HasSuffix(host, "."+sc.Domain) {
			// the inner jar rejects it too
			continue
		}
		if sc.Path == "" || !strings.HasPrefix(sc.Path, "/") {
			sc.Path = defaultPath(u.Path)
		}

		switch {
		case c.MaxAge < 0:
			delete(j.cookies, sc.key())
			continue
		case c.MaxAge > 0:
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			sc.Expires = c.Expires
		}
		if !sc.Expires.IsZero() && !sc.Expires.After(now) {
			delete(j.cookies, sc.key())
			continue
		}
		j.cookies[sc.key()] = sc
	}
}

// Cookies implements http.CookieJar.
func (j *recordingJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// all returns the live cookies sorted by domain, path and name.
func (j *recordingJar) all() []storedCookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	out := make([]storedCookie, 0, len(j.cookies))
	for k, c := range j.cookies {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			delete(j.cookies, k)
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].key() < out[b].key()
	})
	return out
}

// defaultPath implements the cookie default-path algorithm of RFC 6265 section 5.1.4.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}
