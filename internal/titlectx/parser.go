// Package titlectx turns raw window titles into short, human-meaningful
// labels (who a call is with, which folder a terminal is in, which site a
// browser tab shows).
//
// Each category has an ordered list of rules; the first rule whose
// predicate accepts the title produces the result, and every list ends in
// a fallback, so Parse always returns a value.
package titlectx

import (
	"strings"
	"unicode/utf8"
)

const (
	defaultMaxLen = 40
	nameMaxLen    = 30
	ellipsis      = "…"
)

// ParsedTitle is the derived label for a window title. Never persisted.
type ParsedTitle struct {
	Display     string // cleaned, truncated label for display
	ContextType string // "call", "chat", "folder", "video", ...
	Context     string // extracted subject (person, folder, site, ...)
}

// rule is one (predicate, extractor) pair.
type rule struct {
	name    string
	applies func(title string) bool
	extract func(title string) ParsedTitle
}

// ruleSet evaluates rules in order and falls back when none applies.
type ruleSet struct {
	rules    []rule
	fallback func(title string) ParsedTitle
}

func (rs ruleSet) parse(title string) ParsedTitle {
	for _, r := range rs.rules {
		if r.applies(title) {
			return r.extract(title)
		}
	}
	return rs.fallback(title)
}

// Parse derives a ParsedTitle for a title seen in the given app and category.
func Parse(appName, category, title string) ParsedTitle {
	switch strings.ToLower(category) {
	case "communication":
		return parseCommunication(appName, title)
	case "terminal":
		return terminalRules.parse(cleanTerminalTitle(title))
	case "browser":
		return browserRules.parse(cleanBrowserTitle(title))
	}
	return ParsedTitle{
		Display:     Truncate(title, defaultMaxLen),
		ContextType: strings.ToLower(category),
		Context:     title,
	}
}

// Truncate shortens s to at most maxLen characters, replacing the tail with
// a single ellipsis when it does not fit.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + ellipsis
}

func truncatingFallback(contextType string) func(string) ParsedTitle {
	return func(title string) ParsedTitle {
		return ParsedTitle{
			Display:     Truncate(title, defaultMaxLen),
			ContextType: contextType,
			Context:     title,
		}
	}
}
