// Package route maps inbound events to delivery tasks. The route table is
// configuration: loaded once at startup, immutable afterwards, evaluated in
// declaration order with first match winning.
package route

import (
	"fmt"
	"strings"

	"github.com/heraldhq/herald/internal/dispatch"
	"github.com/heraldhq/herald/internal/event"
)

// Channel describes a configured delivery channel: where messages go by
// default and which template renders them when neither the event nor the
// matched rule names one.
type Channel struct {
	Name        string
	Destination string
	Template    string
}

// Rule is one routing predicate. A rule matches when every set condition
// holds: exact type, type prefix, minimum priority, and payload field
// equality. Zero-value conditions are ignored.
type Rule struct {
	Name          string
	Match         string            // exact event type
	Prefix        string            // event type prefix
	MinPriority   event.Priority    // empty means any
	PayloadEquals map[string]string // field -> required value
	Channels      []string
	Template      string
	Destinations  map[string]string // per-channel destination override
}

// Matches reports whether the rule applies to the event.
func (r Rule) Matches(e event.Event) bool {
	if r.Match != "" && e.EventType != r.Match {
		return false
	}
	if r.Prefix != "" && !strings.HasPrefix(e.EventType, r.Prefix) {
		return false
	}
	if r.MinPriority != "" && !e.Priority.AtLeast(r.MinPriority) {
		return false
	}
	for field, want := range r.PayloadEquals {
		v, ok := e.Payload[field]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", v) != want {
			return false
		}
	}
	return true
}

// Table is the immutable routing configuration.
type Table struct {
	Rules    []Rule
	Channels map[string]Channel
}

// Resolution is the result of routing one event.
type Resolution struct {
	Tasks    []*dispatch.Task
	Rule     string // name of the matched rule, empty for explicit channels
	Unrouted bool
}

// Router evaluates the route table. Safe for concurrent use: it holds no
// mutable state.
type Router struct {
	table Table
}

func NewRouter(table Table) *Router {
	return &Router{table: table}
}

// Route turns an event into delivery tasks.
//
// An event with an explicit channel list bypasses the rule table and
// produces one task per listed channel. Otherwise the first matching rule
// decides channels and template; there is no multi-rule fan-out. An event
// matching nothing resolves to zero tasks with Unrouted set, which is a
// signal, not an error.
func (r *Router) Route(e event.Event) (Resolution, error) {
	e = event.Normalize(e)
	if err := event.Validate(e); err != nil {
		return Resolution{}, err
	}

	if len(e.Channels) > 0 {
		return r.explicit(e)
	}

	for _, rule := range r.table.Rules {
		if !rule.Matches(e) {
			continue
		}
		tasks := make([]*dispatch.Task, 0, len(rule.Channels))
		for _, name := range rule.Channels {
			ch, ok := r.table.Channels[name]
			if !ok {
				return Resolution{}, fmt.Errorf("rule %q targets unconfigured channel %q", rule.Name, name)
			}
			dest := rule.Destinations[name]
			if dest == "" {
				dest = ch.Destination
			}
			tmpl := e.Template
			if tmpl == "" {
				tmpl = rule.Template
			}
			if tmpl == "" {
				tmpl = ch.Template
			}
			tasks = append(tasks, dispatch.NewTask(e, name, dest, tmpl))
		}
		return Resolution{Tasks: tasks, Rule: rule.Name}, nil
	}

	return Resolution{Unrouted: true}, nil
}

// explicit produces one task per channel the producer named, ignoring the
// rule table entirely.
func (r *Router) explicit(e event.Event) (Resolution, error) {
	tasks := make([]*dispatch.Task, 0, len(e.Channels))
	for _, name := range e.Channels {
		ch, ok := r.table.Channels[name]
		if !ok {
			return Resolution{}, fmt.Errorf("%w: unknown channel %q", event.ErrInvalidEvent, name)
		}
		tmpl := e.Template
		if tmpl == "" {
			tmpl = ch.Template
		}
		tasks = append(tasks, dispatch.NewTask(e, name, ch.Destination, tmpl))
	}
	return Resolution{Tasks: tasks}, nil
}
