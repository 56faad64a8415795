// Package hookconfig models the hooks.json document a repository commits to
// its default branch to opt into webhook-backed push checks.
package hookconfig

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	validator "gopkg.in/go-playground/validator.v9"
)

// FileName is the configuration file looked up at the tip of the
// repository's default branch.
const FileName = "hooks.json"

// Version is the only supported schema version.
const Version = "1"

// Config is the top-level hooks.json document.
type Config struct {
	Version     string  `json:"version" validate:"required,eq=1"`
	Bypass      *Bypass `json:"bypass"`
	PreReceive  *Hook   `json:"pre-receive"`
	Update      *Hook   `json:"update"`
	PostReceive *Hook   `json:"post-receive"`
}

// Hook configures one hook kind.
type Hook struct {
	RefSelectors []RefSelector `json:"ref-selectors" validate:"required,min=1,dive"`
	URL          string        `json:"url" validate:"required,url"`

	// Config is receiver-defined and passed through verbatim; it is never
	// inspected here.
	Config json.RawMessage `json:"config"`

	RejectOnError    bool     `json:"reject-on-error"`
	RequestTimeout   *int64   `json:"request-timeout"` // milliseconds
	ConnectTimeout   *int64   `json:"connect-timeout"` // milliseconds
	GreetingMessages []string `json:"greeting-messages"`
	IncludePatch     bool     `json:"include-patch"`
	IncludeLog       bool     `json:"include-log"`
	Bypass           *Bypass  `json:"bypass"`
}

// RefSelector scopes a hook to a subset of refs. Exactly one of Name
// (branch, tag) or Pattern (ref-regex) is meaningful, depending on Type.
type RefSelector struct {
	Type    string `json:"type" validate:"required,oneof=branch tag ref-regex"`
	Name    string `json:"name,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// Bypass exempts an invocation from its hook when the named push option is
// present.
type Bypass struct {
	PushOption string   `json:"push-option" validate:"required"`
	Messages   []string `json:"messages"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(refSelectorStructLevel, RefSelector{})
	return v
}

func refSelectorStructLevel(sl validator.StructLevel) {
	s := sl.Current().Interface().(RefSelector)
	switch s.Type {
	case "branch", "tag":
		if s.Name == "" {
			sl.ReportError(s.Name, "name", "Name", "required", "")
		}
	case "ref-regex":
		if s.Pattern == "" {
			sl.ReportError(s.Pattern, "pattern", "Pattern", "required", "")
		} else if _, err := regexp.Compile(s.Pattern); err != nil {
			sl.ReportError(s.Pattern, "pattern", "Pattern", "regex", "")
		}
	}
}

// Decode parses and validates a hooks.json document.
func Decode(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", FileName, err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate %s: %w", FileName, err)
	}
	return &cfg, nil
}

// Select returns the hook section for the given hook kind name, or nil.
func (c *Config) Select(kind string) *Hook {
	switch kind {
	case "pre-receive":
		return c.PreReceive
	case "update":
		return c.Update
	case "post-receive":
		return c.PostReceive
	default:
		return nil
	}
}

// Matches reports whether any of the hook's selectors is in scope for the
// given full ref name. Selectors OR together.
func (h *Hook) Matches(refName string) bool {
	for _, s := range h.RefSelectors {
		if s.Matches(refName) {
			return true
		}
	}
	return false
}

// Matches reports whether one selector applies to a full ref name. Branch
// and tag selectors compare exact short names within their namespace;
// ref-regex matches as written, so patterns anchor themselves.
func (s RefSelector) Matches(refName string) bool {
	switch s.Type {
	case "branch":
		return refName == "refs/heads/"+s.Name
	case "tag":
		return refName == "refs/tags/"+s.Name
	case "ref-regex":
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(refName)
	default:
		return false
	}
}

// TriggeredBypass returns the bypass rule satisfied by the push options, if
// any. The hook's own rule is consulted before the document-wide one, and
// only the triggering rule's messages are surfaced.
func (c *Config) TriggeredBypass(h *Hook, pushOptions []string) *Bypass {
	if h != nil && h.Bypass != nil && h.Bypass.triggered(pushOptions) {
		return h.Bypass
	}
	if c.Bypass != nil && c.Bypass.triggered(pushOptions) {
		return c.Bypass
	}
	return nil
}

func (b *Bypass) triggered(pushOptions []string) bool {
	for _, opt := range pushOptions {
		if opt == b.PushOption {
			return true
		}
	}
	return false
}

// RequestTimeoutDuration returns the request timeout, or zero when the
// phase is unbounded.
func (h *Hook) RequestTimeoutDuration() time.Duration {
	return millis(h.RequestTimeout)
}

// ConnectTimeoutDuration returns the connect timeout, or zero when the
// phase is unbounded.
func (h *Hook) ConnectTimeoutDuration() time.Duration {
	return millis(h.ConnectTimeout)
}

func millis(v *int64) time.Duration {
	if v == nil {
		return 0
	}
	return time.Duration(*v) * time.Millisecond
}
