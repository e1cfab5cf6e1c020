// Package guard decides which page routes need a signed-in session.
package guard

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

const DefaultLoginPath = "/login"

type Route struct {
	Name         string
	Path         string
	RequiresAuth bool
}

// Routes is the page table served to browsers.
var Routes = []Route{
	{Name: "home", Path: "/"},
	{Name: "accepted", Path: "/accepted"},
	{Name: "in-review", Path: "/in-review"},
	{Name: "submission-detail", Path: "/submissions/{id}"},
	{Name: "submission-create", Path: "/submit", RequiresAuth: true},
	{Name: "submission-comments", Path: "/submissions/{id}/comments"},
	{Name: "submission-review-opinions", Path: "/submissions/{id}/review-opinions"},
	{Name: "search", Path: "/search"},
	{Name: "guidelines", Path: "/guidelines"},
	{Name: "about", Path: "/about"},
	{Name: "open-review", Path: "/open-review"},
	{Name: "privacy", Path: "/privacy"},
	{Name: "terms", Path: "/terms"},
	{Name: "login", Path: DefaultLoginPath},
	{Name: "me", Path: "/me", RequiresAuth: true},
}

// SessionChecker reports whether the request belongs to a signed-in client.
type SessionChecker interface {
	HasSession(r *http.Request) bool
}

type SessionCheckerFunc func(r *http.Request) bool

func (f SessionCheckerFunc) HasSession(r *http.Request) bool { return f(r) }

type Decision struct {
	Allow    bool
	Redirect string
}

// Resolve decides navigation to fullPath on route.
func Resolve(route Route, fullPath, loginPath string, hasSession bool) Decision {
	if !route.RequiresAuth || hasSession {
		return Decision{Allow: true}
	}
	return Decision{Redirect: LoginRedirect(loginPath, fullPath)}
}

// LoginRedirect builds the login location carrying fullPath as redirect target.
func LoginRedirect(loginPath, fullPath string) string {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	value := strings.ReplaceAll(url.QueryEscape(fullPath), "%2F", "/")
	return loginPath + "?redirect=" + value
}

// Require wraps a protected route. Unauthenticated requests are redirected
// to the login page with the original path and query preserved.
func Require(sessions SessionChecker, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := Resolve(Route{RequiresAuth: true}, r.URL.RequestURI(), loginPath, sessions.HasSession(r))
			if !d.Allow {
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Mount registers every route of the table on r, guarding those that
// require a session.
func Mount(r chi.Router, routes []Route, sessions SessionChecker, loginPath string, page func(Route) http.Handler) {
	for _, route := range routes {
		h := page(route)
		if route.RequiresAuth {
			h = Require(sessions, loginPath)(h)
		}
		r.Method(http.MethodGet, route.Path, h)
	}
}
