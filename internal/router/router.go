// Package router dispatches inbound updates to the first handler whose
// predicate chain accepts the update in the chat's current phase.
package router

import (
	"context"

	"github.com/rs/zerolog/log"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/update"
)

// Predicate decides whether a route is eligible for an update.
// Predicates must not have side effects.
type Predicate func(u update.Update, phase model.Phase) bool

// HandlerFunc processes a matched update.
type HandlerFunc func(ctx context.Context, u update.Update, phase model.Phase) error

// Route is one entry of the dispatch table.
type Route struct {
	Name       string
	Predicates []Predicate
	Handler    HandlerFunc
}

// Matches reports whether every predicate of the route accepts the update.
func (r Route) Matches(u update.Update, phase model.Phase) bool {
	for _, p := range r.Predicates {
		if !p(u, phase) {
			return false
		}
	}
	return true
}

// Router holds routes in registration order.
type Router struct {
	routes []Route
}

// New creates a router from an explicit ordered route list.
func New(routes ...Route) *Router {
	r := &Router{}
	for _, rt := range routes {
		r.Add(rt)
	}
	return r
}

// Add appends a route. Routes without a handler are ignored.
func (r *Router) Add(rt Route) {
	if rt.Handler == nil {
		return
	}
	r.routes = append(r.routes, rt)
}

// Handle is shorthand for Add(Route{...}).
func (r *Router) Handle(name string, h HandlerFunc, preds ...Predicate) {
	r.Add(Route{Name: name, Predicates: preds, Handler: h})
}

// Match returns the first route accepting the update.
func (r *Router) Match(u update.Update, phase model.Phase) (Route, bool) {
	for _, rt := range r.routes {
		if rt.Matches(u, phase) {
			return rt, true
		}
	}
	return Route{}, false
}

// Route invokes the first matching handler. An update nothing matches is
// dropped: handled is false and err is nil.
func (r *Router) Route(ctx context.Context, u update.Update, phase model.Phase) (bool, error) {
	rt, ok := r.Match(u, phase)
	if !ok {
		log.Debug().
			Int64("chat_id", u.ChatID).
			Str("kind", u.Kind.String()).
			Str("phase", string(phase)).
			Msg("No route matched update")
		return false, nil
	}

	log.Debug().
		Int64("chat_id", u.ChatID).
		Str("route", rt.Name).
		Str("phase", string(phase)).
		Msg("Dispatching update")

	return true, rt.Handler(ctx, u, phase)
}

// Len returns the number of registered routes.
func (r *Router) Len() int {
	return len(r.routes)
}

// Names returns route names in dispatch order.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.routes))
	for _, rt := range r.routes {
		names = append(names, rt.Name)
	}
	return names
}
