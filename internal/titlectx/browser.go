package titlectx

import (
	"regexp"
	"strings"
)

const (
	videoMaxLen = 35
	soMaxLen    = 35
)

// Browser names appended to tab titles.
var browserSuffixes = []string{
	" - Brave", " — Brave", " – Brave",
	" - Google Chrome", " — Google Chrome",
	" - Chromium",
	" - Mozilla Firefox", " — Mozilla Firefox", " - Firefox",
	" - Microsoft Edge", " — Microsoft Edge",
}

var (
	notificationRe = regexp.MustCompile(`^\(\d+\)\s*`)
	siteRe         = regexp.MustCompile(`^(.+?)\s*[-–—|]\s*(.+?)$`)
)

var browserRules = ruleSet{
	rules: []rule{
		{
			name:    "youtube",
			applies: containsAny("youtube"),
			extract: func(t string) ParsedTitle {
				video := notificationRe.ReplaceAllString(t, "")
				video = strings.ReplaceAll(video, " - YouTube", "")
				video = strings.ReplaceAll(video, "YouTube", "")
				video = strings.Trim(video, " -–—")
				if video == "" {
					return ParsedTitle{Display: "YouTube", ContextType: "website", Context: "youtube.com"}
				}
				return ParsedTitle{
					Display:     "YT: " + Truncate(video, videoMaxLen),
					ContextType: "video",
					Context:     video,
				}
			},
		},
		{
			name:    "github",
			applies: containsAny("github"),
			extract: func(t string) ParsedTitle {
				return ParsedTitle{
					Display:     "GitHub: " + Truncate(t, nameMaxLen),
					ContextType: "code",
					Context:     t,
				}
			},
		},
		{
			name:    "stackoverflow",
			applies: containsAny("stack overflow", "stackoverflow"),
			extract: func(t string) ParsedTitle {
				q := strings.TrimSpace(strings.ReplaceAll(t, " - Stack Overflow", ""))
				return ParsedTitle{
					Display:     "SO: " + Truncate(q, soMaxLen),
					ContextType: "research",
					Context:     q,
				}
			},
		},
		{
			name:    "email",
			applies: containsAny("gmail", "inbox", "mail"),
			extract: func(t string) ParsedTitle {
				return ParsedTitle{Display: "Email", ContextType: "email", Context: t}
			},
		},
		{
			name:    "ai",
			applies: containsAny("chatgpt", "claude.ai"),
			extract: func(t string) ParsedTitle {
				return ParsedTitle{Display: "AI Assistant", ContextType: "ai", Context: t}
			},
		},
		{
			name: "docs",
			applies: containsAny("docs.google", "sheets.google", "slides.google",
				"google docs", "google sheets", "google slides"),
			extract: func(t string) ParsedTitle {
				return ParsedTitle{
					Display:     "Docs: " + Truncate(t, nameMaxLen),
					ContextType: "document",
					Context:     t,
				}
			},
		},
		{
			name:    "site",
			applies: siteRe.MatchString,
			extract: func(t string) ParsedTitle {
				m := siteRe.FindStringSubmatch(t)
				page, site := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
				return ParsedTitle{
					Display:     Truncate(page, defaultMaxLen),
					ContextType: "website",
					Context:     site,
				}
			},
		},
	},
	fallback: truncatingFallback("website"),
}

func cleanBrowserTitle(title string) string {
	cleaned := strings.TrimSpace(title)
	for changed := true; changed; {
		changed = false
		for _, suffix := range browserSuffixes {
			if strings.HasSuffix(cleaned, suffix) {
				cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, suffix))
				changed = true
			}
		}
	}
	return cleaned
}

func containsAny(needles ...string) func(string) bool {
	return func(s string) bool {
		lower := strings.ToLower(s)
		for _, n := range needles {
			if strings.Contains(lower, n) {
				return true
			}
		}
		return false
	}
}
