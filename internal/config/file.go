package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/heraldhq/herald/internal/dispatch"
	"github.com/heraldhq/herald/internal/event"
	"github.com/heraldhq/herald/internal/route"
	"github.com/heraldhq/herald/internal/template"
)

// File is the on-disk routing configuration: channels, templates, routes,
// and cron schedules, typically herald.yaml.
type File struct {
	Channels  map[string]ChannelFile                    `mapstructure:"channels"`
	Templates map[string]map[string]template.Definition `mapstructure:"templates"`
	Routes    []RouteFile                               `mapstructure:"routes"`
	Schedules []ScheduleFile                            `mapstructure:"schedules"`
}

// ChannelFile configures one delivery channel: default target, default
// template, and pool sizing.
type ChannelFile struct {
	Destination string  `mapstructure:"destination"`
	Template    string  `mapstructure:"template"`
	Concurrency int     `mapstructure:"concurrency"`
	RatePerSec  float64 `mapstructure:"rate_per_sec"`
	Burst       int     `mapstructure:"burst"`
	BackoffBase string  `mapstructure:"backoff_base"` // duration, e.g. "1s"
	BackoffMax  string  `mapstructure:"backoff_max"`  // duration, e.g. "5m"
	Jitter      float64 `mapstructure:"jitter"`
}

// RouteFile is one routing rule in declaration order.
type RouteFile struct {
	Name          string            `mapstructure:"name"`
	Match         string            `mapstructure:"match"`
	Prefix        string            `mapstructure:"prefix"`
	MinPriority   string            `mapstructure:"min_priority"`
	PayloadEquals map[string]string `mapstructure:"payload_equals"`
	Channels      []string          `mapstructure:"channels"`
	Template      string            `mapstructure:"template"`
	Destinations  map[string]string `mapstructure:"destinations"`
}

// ScheduleFile emits a fixed event on a cron expression.
type ScheduleFile struct {
	Name     string         `mapstructure:"name"`
	Cron     string         `mapstructure:"cron"`
	Event    ScheduledEvent `mapstructure:"event"`
	Disabled bool           `mapstructure:"disabled"`
}

type ScheduledEvent struct {
	EventType string         `mapstructure:"event_type"`
	Priority  string         `mapstructure:"priority"`
	Payload   map[string]any `mapstructure:"payload"`
	Channels  []string       `mapstructure:"channels"`
	Template  string         `mapstructure:"template"`
}

// LoadFile reads and validates the routing configuration.
func LoadFile(path string) (*File, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &f, nil
}

// Validate checks cross-references: routes must target declared channels
// and templates, priorities must be known levels.
func (f *File) Validate() error {
	if len(f.Channels) == 0 {
		return fmt.Errorf("no channels declared")
	}
	for name, ch := range f.Channels {
		if ch.Destination == "" {
			return fmt.Errorf("channel %q has no destination", name)
		}
		if ch.Template != "" && !f.hasTemplate(ch.Template) {
			return fmt.Errorf("channel %q default template %q is not declared", name, ch.Template)
		}
		if _, err := parseDuration(ch.BackoffBase); err != nil {
			return fmt.Errorf("channel %q backoff_base: %w", name, err)
		}
		if _, err := parseDuration(ch.BackoffMax); err != nil {
			return fmt.Errorf("channel %q backoff_max: %w", name, err)
		}
	}
	for i, r := range f.Routes {
		if r.Name == "" {
			return fmt.Errorf("route %d has no name", i)
		}
		if r.Match == "" && r.Prefix == "" && r.MinPriority == "" && len(r.PayloadEquals) == 0 {
			return fmt.Errorf("route %q matches everything; add a condition", r.Name)
		}
		if len(r.Channels) == 0 {
			return fmt.Errorf("route %q targets no channels", r.Name)
		}
		for _, ch := range r.Channels {
			if _, ok := f.Channels[ch]; !ok {
				return fmt.Errorf("route %q targets undeclared channel %q", r.Name, ch)
			}
		}
		if r.MinPriority != "" && !event.Priority(r.MinPriority).Valid() {
			return fmt.Errorf("route %q min_priority %q is not a priority level", r.Name, r.MinPriority)
		}
		if r.Template != "" && !f.hasTemplate(r.Template) {
			return fmt.Errorf("route %q template %q is not declared", r.Name, r.Template)
		}
	}
	for _, s := range f.Schedules {
		if s.Name == "" || s.Cron == "" {
			return fmt.Errorf("schedule %q needs name and cron", s.Name)
		}
		if s.Event.EventType == "" {
			return fmt.Errorf("schedule %q emits an event without event_type", s.Name)
		}
		if s.Event.Priority != "" && !event.Priority(s.Event.Priority).Valid() {
			return fmt.Errorf("schedule %q priority %q is not a priority level", s.Name, s.Event.Priority)
		}
	}
	return nil
}

func (f *File) hasTemplate(name string) bool {
	_, ok := f.Templates[name]
	return ok
}

// RouteTable converts the file into the router's immutable table.
func (f *File) RouteTable() route.Table {
	t := route.Table{Channels: make(map[string]route.Channel, len(f.Channels))}
	for name, ch := range f.Channels {
		t.Channels[name] = route.Channel{
			Name:        name,
			Destination: ch.Destination,
			Template:    ch.Template,
		}
	}
	for _, r := range f.Routes {
		t.Rules = append(t.Rules, route.Rule{
			Name:          r.Name,
			Match:         r.Match,
			Prefix:        r.Prefix,
			MinPriority:   event.Priority(r.MinPriority),
			PayloadEquals: r.PayloadEquals,
			Channels:      r.Channels,
			Template:      r.Template,
			Destinations:  r.Destinations,
		})
	}
	return t
}

// TemplateSet converts the file's templates for the renderer.
func (f *File) TemplateSet() map[string]template.Template {
	out := make(map[string]template.Template, len(f.Templates))
	for name, variants := range f.Templates {
		out[name] = template.Template{Name: name, Variants: variants}
	}
	return out
}

// DispatchConfig converts per-channel pool settings, with engine-level
// defaults from the environment config.
func (f *File) DispatchConfig(eng Engine) dispatch.Config {
	cfg := dispatch.Config{
		MaxAttempts: eng.MaxAttempts,
		Channels:    make(map[string]dispatch.ChannelConfig, len(f.Channels)),
	}
	for name, ch := range f.Channels {
		base, _ := parseDuration(ch.BackoffBase)
		ceil, _ := parseDuration(ch.BackoffMax)
		var backoff dispatch.BackoffPolicy
		if base > 0 || ceil > 0 {
			backoff = dispatch.BackoffPolicy{Base: base, Max: ceil, Jitter: ch.Jitter}
		}
		cfg.Channels[name] = dispatch.ChannelConfig{
			Concurrency: ch.Concurrency,
			RatePerSec:  ch.RatePerSec,
			Burst:       ch.Burst,
			Backoff:     backoff,
			SendTimeout: eng.SendTimeout,
		}
	}
	return cfg
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
