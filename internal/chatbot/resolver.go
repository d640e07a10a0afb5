package chatbot

import (
	"strings"

	"github.com/elliotchance/pie/v2"
)

// Rule is one row of the keyword decision table: if the lowercased input
// contains any keyword, the rule's topic wins.
type Rule struct {
	Keywords []string `json:"keywords"`
	Topic    Topic    `json:"topic"`
}

func (r Rule) matches(lowered string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// defaultRules is evaluated top to bottom, first match wins. Matching is plain
// substring search, so "hi" fires inside "this" and "app" inside "happy" when
// no earlier rule matched first. The order is part of the observable behavior.
var defaultRules = []Rule{
	{Keywords: []string{"service", "what do you do"}, Topic: Services},
	{Keywords: []string{"web", "website"}, Topic: WebDev},
	{Keywords: []string{"mobile", "app"}, Topic: Mobile},
	{Keywords: []string{"design", "ui", "ux"}, Topic: Design},
	{Keywords: []string{"cloud", "aws", "server"}, Topic: Cloud},
	{Keywords: []string{"project", "portfolio", "work"}, Topic: Projects},
	{Keywords: []string{"contact", "email", "phone"}, Topic: Contact},
	{Keywords: []string{"team", "about", "who"}, Topic: Team},
	{Keywords: []string{"price", "cost", "quote", "budget"}, Topic: Quote},
	{Keywords: []string{"hello", "hi", "hey"}, Topic: Greeting},
}

// Resolver turns typed text or a chosen option into exactly one Response.
// It holds only read-only tables and is safe for concurrent use.
type Resolver struct {
	catalog *Catalog
	rules   []Rule
	routes  map[string]string
}

// New returns a resolver over the built-in catalog, rules and routes.
func New() *Resolver {
	return &Resolver{
		catalog: defaultCatalog,
		rules:   defaultRules,
		routes:  actionRoutes,
	}
}

func (r *Resolver) Catalog() *Catalog { return r.catalog }

// Rules returns the keyword table in evaluation order.
func (r *Resolver) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	for i, rule := range r.rules {
		out[i] = Rule{Keywords: append([]string(nil), rule.Keywords...), Topic: rule.Topic}
	}
	return out
}

// Match reports which topic the keyword table assigns to input, if any.
func (r *Resolver) Match(input string) (Topic, bool) {
	lowered := strings.ToLower(input)
	i := pie.FindFirstUsing(r.rules, func(rule Rule) bool { return rule.matches(lowered) })
	if i < 0 {
		return 0, false
	}
	return r.rules[i].Topic, true
}

// ResolveFreeText answers typed user text. Input no rule matches gets the
// fallback menu.
func (r *Resolver) ResolveFreeText(input string) Response {
	if t, ok := r.Match(input); ok {
		return r.catalog.Lookup(t)
	}
	return r.catalog.Fallback()
}

// ResolveAction answers a selected option by direct catalog lookup. Unknown
// keys resolve like empty free text, i.e. to the fallback menu.
func (r *Resolver) ResolveAction(actionKey string) Response {
	if resp, ok := r.catalog.Get(actionKey); ok {
		return resp
	}
	return r.ResolveFreeText("")
}

// RouteFor returns the navigation target of an action key. Callers should
// only act on it when the response they just showed has Kind Action.
func (r *Resolver) RouteFor(actionKey string) (string, bool) {
	path, ok := r.routes[actionKey]
	return path, ok
}
