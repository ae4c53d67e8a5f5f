// Package router decides, from a path and the current auth state, whether a
// page renders, redirects, waits for auth, or is not found.
package router

import (
	"strings"

	"recruit-portal/internal/models"
	"recruit-portal/internal/session"
)

type Page string

const (
	PageIndex     Page = "index"
	PageLogin     Page = "login"
	PageSignup    Page = "signup"
	PageHR        Page = "hr"
	PageCandidate Page = "candidate"
	PageExam      Page = "exam"
	PageNotFound  Page = "not_found"
)

type Outcome string

const (
	Render   Outcome = "render"
	Redirect Outcome = "redirect"
	// Pending means auth is still loading; render a loading state, never redirect.
	Pending  Outcome = "pending"
	NotFound Outcome = "not_found"
)

const LoginPath = "/login"

// Route is one entry of the route table. A pattern segment starting with ':'
// captures a parameter. Prefix routes also match every path below them.
type Route struct {
	Pattern string
	Page    Page
	Require models.Role
	Prefix  bool
}

// Routes is the portal's route table, matched in order.
var Routes = []Route{
	{Pattern: "/", Page: PageIndex},
	{Pattern: "/login", Page: PageLogin},
	{Pattern: "/signup", Page: PageSignup},
	{Pattern: "/hr", Page: PageHR, Require: models.RoleHRAdmin, Prefix: true},
	{Pattern: "/candidate", Page: PageCandidate, Require: models.RoleCandidate, Prefix: true},
	{Pattern: "/exam/:token", Page: PageExam, Prefix: true},
}

type Decision struct {
	Outcome  Outcome           `json:"outcome"`
	Page     Page              `json:"page"`
	Location string            `json:"location,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
}

// HomeFor returns the landing path of a role.
func HomeFor(role models.Role) string {
	switch role {
	case models.RoleHRAdmin:
		return "/hr"
	case models.RoleCandidate:
		return "/candidate"
	default:
		return "/"
	}
}

// Resolve applies the route table and role gates to path.
func Resolve(path string, state session.AuthState) Decision {
	route, params, ok := match(path)
	if !ok {
		return Decision{Outcome: NotFound, Page: PageNotFound}
	}
	d := Decision{Page: route.Page, Params: params}

	if route.Require == "" {
		d.Outcome = Render
		return d
	}

	switch state.Status {
	case session.StatusLoading:
		d.Outcome = Pending
		return d
	case session.StatusAuthenticated:
		role, _ := state.Role()
		if role == route.Require {
			d.Outcome = Render
			return d
		}
		d.Outcome, d.Location = Redirect, HomeFor(role)
		return d
	default:
		d.Outcome, d.Location = Redirect, LoginPath
		return d
	}
}

func match(path string) (Route, map[string]string, bool) {
	segs := split(path)
	for _, r := range Routes {
		pat := split(r.Pattern)
		if len(segs) < len(pat) || (!r.Prefix && len(segs) != len(pat)) {
			continue
		}
		params, ok := matchSegments(pat, segs)
		if ok {
			return r, params, true
		}
	}
	return Route{}, nil, false
}

func matchSegments(pattern, segs []string) (map[string]string, bool) {
	var params map[string]string
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			if segs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[p[1:]] = segs[i]
			continue
		}
		if p != segs[i] {
			return nil, false
		}
	}
	return params, true
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
