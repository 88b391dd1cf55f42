package session

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jobrunner/landsatlook/internal/domain"
)

const netscapeHeader = "# Netscape HTTP Cookie File"

// SaveCookiesForGDAL writes the session cookies as a Netscape cookie file,
// the format GDAL reads through GDAL_HTTP_COOKIEFILE.
func (s *Session) SaveCookiesForGDAL(path string) error {
	var b strings.Builder
	b.WriteString(netscapeHeader + "\n")

	for _, c := range s.jar.all() {
		d, sub := c.Domain, "FALSE"
		if !c.HostOnly {
			d, sub = "."+c.Domain, "TRUE"
		}
		var expires int64
		if !c.Expires.IsZero() {
			expires = c.Expires.Unix()
		}
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			d, sub, c.Path, boolField(c.Secure), expires, c.Name, c.Value)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return &domain.StorageError{Operation: "save cookies", Key: path, Err: err}
	}
	return nil
}

// CookieHeader returns the cookies the session would send to rawURL as a
// "name=value; name=value" string, the format of GDAL_HTTP_COOKIE.
func (s *Session) CookieHeader(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &domain.ValidationError{Field: "url", Value: rawURL, Constraint: "valid URL", Message: err.Error()}
	}

	cookies := s.jar.Cookies(u)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; "), nil
}

// LoadCookies reads a Netscape cookie file into the session jar.
// Expired entries are skipped. It returns the number of cookies loaded.
func (s *Session) LoadCookies(path string) (int, error) {
	f, err := os.Open(path) //#nosec G304 -- cookie file path is user configuration
	if err != nil {
		return 0, &domain.StorageError{Operation: "load cookies", Key: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	now := time.Now()
	var n int
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimRight(scanner.Text(), "\r")
		text = strings.TrimPrefix(text, "#HttpOnly_")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		c, u, err := parseNetscapeLine(text)
		if err != nil {
			return n, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		s.jar.SetCookies(u, []*http.Cookie{c})
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, &domain.StorageError{Operation: "load cookies", Key: path, Err: err}
	}
	return n, nil
}

func parseNetscapeLine(line string) (*http.Cookie, *url.URL, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return nil, nil, &domain.ValidationError{
			Field:      "cookie line",
			Value:      len(fields),
			Constraint: "7 tab-separated fields",
			Message:    "malformed Netscape cookie entry",
		}
	}

	host := strings.TrimPrefix(fields[0], ".")
	includeSub := strings.EqualFold(fields[1], "TRUE")
	secure := strings.EqualFold(fields[3], "TRUE")
	expires, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, nil, &domain.ValidationError{Field: "expires", Value: fields[4], Constraint: "unix seconds", Message: "invalid cookie expiry"}
	}

	c := &http.Cookie{
		Name:   fields[5],
		Value:  fields[6],
		Path:   fields[2],
		Secure: secure,
	}
	if includeSub {
		c.Domain = host
	}
	if expires > 0 {
		c.Expires = time.Unix(expires, 0)
	}

	scheme := "http"
	if secure {
		scheme = "https"
	}
	return c, &url.URL{Scheme: scheme, Host: host, Path: c.Path}, nil
}

func boolField(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
