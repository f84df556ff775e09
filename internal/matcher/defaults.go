package matcher

import "github.com/eliteGoblin/focusd/flowmode/internal/domain"

// Categories the title parser has dedicated rules for.
const (
	CategoryBrowser       = "Browser"
	CategoryCommunication = "Communication"
	CategoryTerminal      = "Terminal"
	CategoryDevelopment   = "Development"
	CategoryNotes         = "Notes"
	CategoryOffice        = "Office"
	CategoryFiles         = "Files"
)

// DefaultApps returns the built-in rule list used when no configuration
// provides one. The first matching rule wins.
func DefaultApps() []domain.TrackedApp {
	return []domain.TrackedApp{
		// Browsers
		{Name: "Brave", MatchType: domain.MatchWindowClass, Pattern: "brave", Category: CategoryBrowser},

		// Communication
		{Name: "Teams", MatchType: domain.MatchWindowTitle, Pattern: "Teams", Category: CategoryCommunication},

		// Terminals
		{Name: "Ghostty", MatchType: domain.MatchWindowClass, Pattern: "ghostty", Category: CategoryTerminal},
		{Name: "Terminus", MatchType: domain.MatchWindowClass, Pattern: "terminus", Category: CategoryTerminal},

		// Editors & IDEs
		{Name: "Claude Code", MatchType: domain.MatchWindowTitle, Pattern: "Claude", Category: CategoryDevelopment},
		{Name: "VS Code", MatchType: domain.MatchWindowClass, Pattern: "code", Category: CategoryDevelopment},

		{Name: "Obsidian", MatchType: domain.MatchWindowClass, Pattern: "obsidian", Category: CategoryNotes},
		{Name: "OnlyOffice", MatchType: domain.MatchWindowClass, Pattern: "onlyoffice", Category: CategoryOffice},
		{Name: "Dolphin", MatchType: domain.MatchWindowClass, Pattern: "dolphin", Category: CategoryFiles},
	}
}
