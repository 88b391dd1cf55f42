package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/jobrunner/landsatlook/internal/domain"
)

// DefaultLoginURL is the USGS EROS Registration System login page.
const DefaultLoginURL = "https://ers.cr.usgs.gov/login/"

const maxLoginPage = 4 << 20

// loginForm is the parsed login form of a page.
type loginForm struct {
	action        string
	hidden        url.Values
	userField     string
	passwordField string
}

// Login signs in through an HTML login form such as USGS ERS. The form's
// hidden fields (including the CSRF token) are posted back with the
// credentials; the resulting cookies stay in the session.
func (s *Session) Login(ctx context.Context, loginURL, username, password string) error {
	if username == "" || password == "" {
		return &domain.ValidationError{Field: "credentials", Value: username, Constraint: "non-empty", Message: "username and password are required"}
	}
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}

	page, err := s.fetchPage(ctx, http.MethodGet, loginURL, nil)
	if err != nil {
		return err
	}

	form, err := findLoginForm(page)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrAuth, loginURL, err)
	}

	action, err := resolveAction(loginURL, form.action)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}

	values := form.hidden
	values.Set(form.userField, username)
	values.Set(form.passwordField, password)

	result, err := s.fetchPage(ctx, http.MethodPost, action, values)
	if err != nil {
		return err
	}

	if _, err := findLoginForm(result); err == nil {
		return fmt.Errorf("%w: login form returned again, credentials were rejected", domain.ErrAuth)
	}
	return nil
}

// fetchPage issues a GET or form POST and parses the HTML response.
func (s *Session) fetchPage(ctx context.Context, method, target string, form url.Values) (*html.Node, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Referer", target)
	}

	resp, err := s.Do(req)
	if err != nil {
		return nil, &domain.TransportError{URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuth,
			&domain.HTTPError{URL: target, StatusCode: resp.StatusCode, Status: resp.Status})
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxLoginPage))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", domain.ErrAuth, target, err)
	}
	return doc, nil
}

// findLoginForm returns the first form that contains a password input.
func findLoginForm(doc *html.Node) (*loginForm, error) {
	var found *loginForm

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "form" {
			if f := parseForm(n); f.passwordField != "" {
				found = f
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if found == nil {
		return nil, fmt.Errorf("no login form found")
	}
	return found, nil
}

func parseForm(form *html.Node) *loginForm {
	f := &loginForm{action: attr(form, "action"), hidden: url.Values{}}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" {
			name := attr(n, "name")
			switch strings.ToLower(attr(n, "type")) {
			case "hidden":
				if name != "" {
					f.hidden.Add(name, attr(n, "value"))
				}
			case "password":
				if f.passwordField == "" {
					f.passwordField = name
				}
			case "", "text", "email":
				if f.userField == "" {
					f.userField = name
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(form)

	if f.userField == "" {
		f.userField = "username"
	}
	return f
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func resolveAction(pageURL, action string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	if action == "" {
		return base.String(), nil
	}
	ref, err := url.Parse(action)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
