package session

import (
	"fmt"

	"github.com/dom/product-console/internal/domain"
)

// Route is a protected destination. An empty RequiredRole admits any
// authenticated user.
type Route struct {
	Path         string
	RequiredRole domain.Role
}

type DecisionKind int

const (
	Allow DecisionKind = iota
	RedirectLogin
	AccessDenied
)

func (k DecisionKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect-login"
	default:
		return "access-denied"
	}
}

type Decision struct {
	Kind DecisionKind
	// From is the requested path, to return to after logging in.
	From     string
	Required domain.Role
	Held     domain.Role
	User     *domain.PublicUser
}

// Message is the text shown for a denied decision.
func (d Decision) Message() string {
	switch d.Kind {
	case RedirectLogin:
		return fmt.Sprintf("Please log in to access %s", d.From)
	case AccessDenied:
		return fmt.Sprintf("Access denied: requires role '%s', current role '%s'", d.Required, d.Held)
	default:
		return ""
	}
}

// Guard decides whether the current session may open a route.
type Guard struct {
	controller *Controller
}

func NewGuard(controller *Controller) *Guard {
	return &Guard{controller: controller}
}

// Authorize runs a lifecycle check first, so an expired session is cleared
// and redirected rather than admitted.
func (g *Guard) Authorize(route Route) Decision {
	if _, err := g.controller.Check(); err != nil {
		g.controller.lg.Warnw("guard: session check failed", "path", route.Path, "error", err)
	}

	s, err := g.controller.Current()
	if err != nil || s == nil {
		return Decision{Kind: RedirectLogin, From: route.Path}
	}

	user := s.User
	if route.RequiredRole != "" && user.Role != route.RequiredRole {
		return Decision{Kind: AccessDenied, From: route.Path, Required: route.RequiredRole, Held: user.Role, User: &user}
	}
	return Decision{Kind: Allow, From: route.Path, User: &user}
}
