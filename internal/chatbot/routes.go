package chatbot

import (
	"maps"

	"github.com/elliotchance/pie/v2"
)

// actionRoutes maps action keys to site paths. It shares the key namespace
// with the catalog by convention only; the two tables are looked up separately.
var actionRoutes = map[string]string{
	"portfolio":    "/projects",
	"contact-form": "/contact",
	"team-page":    "/team",
	"careers":      "/careers",
}

// Routes returns a copy of the action route table.
func Routes() map[string]string {
	return maps.Clone(actionRoutes)
}

// RoutedActions lists the action keys that have a route, sorted.
func RoutedActions() []string {
	return pie.Sort(pie.Keys(actionRoutes))
}
