package service

import (
	"context"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
	"github.com/target/inventory-console/internal/navigation"
)

// Destination is a view the user is trying to reach.
type Destination struct {
	// URL is the requested location, carried to the login view as returnUrl.
	URL string
	// RequiredRole is the minimum role, or "" when any signed-in user may enter.
	RequiredRole domainauth.Role
}

// Decision is the outcome of a gate check. Redirect is set only when Allow is false.
type Decision struct {
	Allow    bool
	Redirect navigation.Target
}

// Gate decides whether navigation to a destination may proceed.
type Gate struct {
	state     *SessionState
	navigator navigation.Navigator
}

// NewGate creates a Gate reading from state.
func NewGate(state *SessionState, navigator navigation.Navigator) *Gate {
	if navigator == nil {
		navigator = navigation.Discard
	}
	return &Gate{state: state, navigator: navigator}
}

// Decide applies the role-rank rule without side effects.
func (g *Gate) Decide(dest Destination) Decision {
	if !g.state.Authenticated() {
		return deny(navigation.Login(dest.URL))
	}
	if dest.RequiredRole == "" || g.state.Role().AtLeast(dest.RequiredRole) {
		return Decision{Allow: true}
	}
	return deny(navigation.Root())
}

// DecideAdmin allows only administrators. Everyone else, signed in or not, goes to the root view.
func (g *Gate) DecideAdmin(Destination) Decision {
	if g.state.IsAdmin() {
		return Decision{Allow: true}
	}
	return deny(navigation.Root())
}

// CanActivate runs Decide and navigates on denial.
func (g *Gate) CanActivate(ctx context.Context, dest Destination) bool {
	return g.apply(ctx, g.Decide(dest))
}

// CanActivateAdmin runs DecideAdmin and navigates on denial.
func (g *Gate) CanActivateAdmin(ctx context.Context, dest Destination) bool {
	return g.apply(ctx, g.DecideAdmin(dest))
}

func (g *Gate) apply(ctx context.Context, d Decision) bool {
	if !d.Allow {
		g.navigator.Navigate(ctx, d.Redirect)
	}
	return d.Allow
}

func deny(to navigation.Target) Decision {
	return Decision{Redirect: to}
}
