package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

// Theme defines the colour palette for command output.
type Theme struct {
	// Primary is the main accent colour.
	Primary lipgloss.Color

	// Secondary is the secondary accent colour.
	Secondary lipgloss.Color

	// Muted is for less important text.
	Muted lipgloss.Color

	// Success indicates positive outcomes.
	Success lipgloss.Color

	// Warning indicates caution.
	Warning lipgloss.Color

	// Error indicates problems.
	Error lipgloss.Color

	// Border is the border colour.
	Border lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:   lipgloss.Color("#7C3AED"), // Purple
		Secondary: lipgloss.Color("#06B6D4"), // Cyan
		Muted:     lipgloss.Color("#6C7086"), // Medium gray
		Success:   lipgloss.Color("#A6E3A1"), // Green
		Warning:   lipgloss.Color("#F9E2AF"), // Yellow
		Error:     lipgloss.Color("#F38BA8"), // Red
		Border:    lipgloss.Color("#45475A"), // Border gray
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Label    lipgloss.Style
	Box      lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary),
		Subtitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Secondary),
		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),
		Success: lipgloss.NewStyle().
			Foreground(theme.Success),
		Warning: lipgloss.NewStyle().
			Foreground(theme.Warning),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Error),
		Label: lipgloss.NewStyle().
			Width(14).
			Foreground(theme.Muted),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
	}
}

var styles = NewStyles(nil)

// heading renders a title with an underline of matching width.
func heading(title string) string {
	return styles.Title.Render(title) + "\n" + styles.Muted.Render(strings.Repeat("=", lipgloss.Width(title)))
}

// field renders a padded label and its value.
func field(label string, value any) string {
	return styles.Label.Render(label+":") + " " + fmt.Sprint(value)
}

// statusStyle picks a colour for a validation status.
func statusStyle(s domain.ValidationStatus) lipgloss.Style {
	switch s {
	case domain.StatusValidated:
		return styles.Success
	case domain.StatusInvalid:
		return styles.Error
	default:
		return styles.Warning
	}
}

// tierStyle picks a colour for a classification tier.
func tierStyle(t domain.Tier) lipgloss.Style {
	switch t {
	case domain.TierRelevant, domain.TierAutoConserved:
		return styles.Success
	case domain.TierReviewNeeded:
		return styles.Warning
	default:
		return styles.Muted
	}
}
