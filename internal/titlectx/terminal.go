package titlectx

import (
	"regexp"
	"strings"
)

var lastSegmentRe = regexp.MustCompile(`(?:^|/)([^/]+)$`)

// status glyphs some terminals and shells prepend to the title
const terminalGlyphs = "✱*●○◉ "

var terminalRules = ruleSet{
	rules: []rule{
		{
			name:    "path",
			applies: func(t string) bool { return strings.HasPrefix(t, "~") || strings.HasPrefix(t, "/") },
			extract: folderFromPath,
		},
		{
			name: "user@host:path",
			applies: func(t string) bool {
				_, ok := hostPathFolder(t)
				return ok
			},
			extract: func(t string) ParsedTitle {
				folder, _ := hostPathFolder(t)
				return folderFromPath(folder)
			},
		},
		{
			name: "editor",
			applies: func(t string) bool {
				return strings.HasPrefix(t, "nvim ") || strings.HasPrefix(t, "vim ")
			},
			extract: func(t string) ParsedTitle {
				fields := strings.Fields(t)
				file := fields[len(fields)-1]
				if len(fields) > 1 {
					file = fields[1]
				}
				if seg, ok := lastSegment(file); ok {
					file = seg
				}
				return ParsedTitle{
					Display:     "Editing: " + Truncate(file, nameMaxLen),
					ContextType: "file",
					Context:     file,
				}
			},
		},
	},
	fallback: truncatingFallback("terminal"),
}

func cleanTerminalTitle(title string) string {
	return strings.TrimLeft(strings.TrimSpace(title), terminalGlyphs)
}

// hostPathFolder extracts the last folder of the path in "user@host: path".
func hostPathFolder(t string) (string, bool) {
	at := strings.Index(t, "@")
	if at < 0 {
		return "", false
	}
	colon := strings.Index(t[at:], ":")
	if colon < 0 {
		return "", false
	}
	return lastSegment(strings.TrimSpace(t[at+colon+1:]))
}

func folderFromPath(path string) ParsedTitle {
	folder, ok := lastSegment(path)
	if !ok {
		folder = path
	}
	return ParsedTitle{
		Display:     "Folder: " + Truncate(folder, nameMaxLen),
		ContextType: "folder",
		Context:     folder,
	}
}

// lastSegment returns the final path component, ignoring trailing slashes.
func lastSegment(path string) (string, bool) {
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "", false
	}
	m := lastSegmentRe.FindStringSubmatch(trimmed)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}
