// Package matcher classifies window snapshots against the ordered list of
// tracked-app rules. First match wins; matching is a case-insensitive
// substring test.
package matcher

import (
	"strings"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
)

// Matcher holds an ordered rule list and the field Process rules read.
type Matcher struct {
	apps         []domain.TrackedApp
	processField domain.ProcessField
}

// New creates a matcher over a copy of apps. An empty processField keeps
// Process rules on the window class.
func New(apps []domain.TrackedApp, processField domain.ProcessField) *Matcher {
	if processField == "" {
		processField = domain.ProcessFieldWindowClass
	}
	rules := make([]domain.TrackedApp, len(apps))
	copy(rules, apps)
	return &Matcher{apps: rules, processField: processField}
}

// NewDefault creates a matcher over the built-in app list.
func NewDefault() *Matcher {
	return New(DefaultApps(), domain.ProcessFieldWindowClass)
}

// Apps returns the rules in declaration order.
func (m *Matcher) Apps() []domain.TrackedApp {
	out := make([]domain.TrackedApp, len(m.apps))
	copy(out, m.apps)
	return out
}

// ProcessField returns the field Process rules are resolved against.
func (m *Matcher) ProcessField() domain.ProcessField {
	return m.processField
}

// Match returns the first rule matching the snapshot.
func (m *Matcher) Match(snapshot domain.WindowSnapshot) (domain.TrackedApp, bool) {
	return Match(snapshot, m.apps, m.processField)
}

// Match is the pure form of Matcher.Match.
func Match(snapshot domain.WindowSnapshot, rules []domain.TrackedApp, processField domain.ProcessField) (domain.TrackedApp, bool) {
	class := strings.ToLower(snapshot.WindowClass)
	title := strings.ToLower(snapshot.WindowTitle)
	process := class
	if processField == domain.ProcessFieldProcessName {
		process = strings.ToLower(snapshot.ProcessName)
	}

	for _, app := range rules {
		pattern := strings.ToLower(app.Pattern)

		var field string
		switch app.MatchType {
		case domain.MatchWindowClass:
			field = class
		case domain.MatchWindowTitle:
			field = title
		case domain.MatchProcess:
			field = process
		default:
			continue
		}

		if strings.Contains(field, pattern) {
			return app, true
		}
	}
	return domain.TrackedApp{}, false
}
