package titlectx

import (
	"regexp"
	"strings"
)

// chatApp describes how a chat/meeting client formats its window titles.
type chatApp struct {
	nameMatch string // substring of the configured app name, lowercase
	label     string // product name as it appears at the end of titles
	short     string // display label when no better context exists
	rules     ruleSet
}

// unread-count marker such as "(2) " that chat clients prepend
const unreadPrefix = `^(?:\(\d+\)\s*)?`

var callRe = regexp.MustCompile(`(?i)` + unreadPrefix + `(?:Call|Meeting)\s*(?:with\s+)?(?:\|\s*)?(.+?)\s*(?:\||$)`)

var chatApps = []*chatApp{
	newChatApp("teams", "Microsoft Teams", "Teams"),
}

func newChatApp(nameMatch, label, short string) *chatApp {
	app := &chatApp{nameMatch: nameMatch, label: label, short: short}

	quoted := regexp.QuoteMeta(label)
	chatRe := regexp.MustCompile(`(?i)` + unreadPrefix + `Chat\s*\|\s*(.+?)\s*\|\s*` + quoted)
	channelRe := regexp.MustCompile(`(?i)` + unreadPrefix + `(.*?)\s*\|\s*` + quoted)

	app.rules = ruleSet{
		rules: []rule{
			{
				name:    "call",
				applies: callRe.MatchString,
				extract: func(title string) ParsedTitle {
					person := firstGroup(callRe, title, "Unknown")
					return ParsedTitle{
						Display:     "Call: " + Truncate(person, nameMaxLen),
						ContextType: "call",
						Context:     person,
					}
				},
			},
			{
				name:    "chat",
				applies: chatRe.MatchString,
				extract: func(title string) ParsedTitle {
					person := firstGroup(chatRe, title, "Unknown")
					return ParsedTitle{
						Display:     "Chat: " + Truncate(person, nameMaxLen),
						ContextType: "chat",
						Context:     person,
					}
				},
			},
			{
				name:    "channel",
				applies: channelRe.MatchString,
				extract: func(title string) ParsedTitle {
					channel := firstGroup(channelRe, title, "")
					if channel == "" || strings.EqualFold(channel, app.label) || strings.EqualFold(channel, app.short) {
						return ParsedTitle{Display: app.short, ContextType: "app", Context: app.label}
					}
					return ParsedTitle{
						Display:     Truncate(channel, defaultMaxLen),
						ContextType: "channel",
						Context:     channel,
					}
				},
			},
		},
		fallback: truncatingFallback("communication"),
	}
	return app
}

func parseCommunication(appName, title string) ParsedTitle {
	name := strings.ToLower(appName)
	for _, app := range chatApps {
		if strings.Contains(name, app.nameMatch) {
			return app.rules.parse(strings.TrimSpace(title))
		}
	}
	return truncatingFallback("communication")(title)
}

func firstGroup(re *regexp.Regexp, s, fallback string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return fallback
	}
	return strings.TrimSpace(m[1])
}
