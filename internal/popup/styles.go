// Package popup is the terminal bookmark popup: a five-state bubbletea model that
// signs the user in, shows the active page and saves it as a categorized bookmark.
package popup

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	colorPrimary   = lipgloss.Color("#7C3AED") // violet
	colorSuccess   = lipgloss.Color("#22C55E") // green
	colorWarning   = lipgloss.Color("#EAB308") // yellow
	colorError     = lipgloss.Color("#EF4444") // red
	colorInfo      = lipgloss.Color("#3B82F6") // blue
	colorMuted     = lipgloss.Color("#6B7280") // gray
	colorSurface   = lipgloss.Color("#313244")
	colorText      = lipgloss.Color("#CDD6F4")
	colorSubtext   = lipgloss.Color("#A6ADC8")
	colorBorder    = lipgloss.Color("#45475A")
	colorHighlight = lipgloss.Color("#F5C2E7") // pink
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorPrimary).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorHighlight).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorInfo).
			Bold(true).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)

	focusedFieldStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	chipStyle = lipgloss.NewStyle().
			Foreground(colorSubtext).
			Background(colorSurface).
			Padding(0, 1).
			MarginRight(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorSubtext).
			Background(colorSurface).
			PaddingLeft(1).
			PaddingRight(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)
