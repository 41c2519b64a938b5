package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xplor/crewscore/internal/domain/scoring"
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#01FAC6")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
)

const (
	rule     = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
	barWidth = 20
)

var tierIcons = map[string]string{
	"star":   "☆",
	"zap":    "⚡",
	"award":  "✪",
	"crown":  "♛",
	"anchor": "⚓",
	"medal":  "◉",
	"trophy": "♜",
	"gem":    "◆",
}

// tierBadge renders a tier label on its own color.
func tierBadge(t scoring.Tier) string {
	style := lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#0F172A"))
	if t.Color != "" {
		style = style.Background(lipgloss.Color(t.Color))
	}
	label := t.Label
	if icon, ok := tierIcons[t.Icon]; ok {
		label = icon + " " + label
	}
	return style.Render(label)
}

// bar draws score out of max as a fixed-width gauge.
func bar(score, maxScore int) string {
	if maxScore <= 0 {
		return mutedStyle.Render(strings.Repeat("·", barWidth))
	}
	filled := score * barWidth / maxScore
	if filled > barWidth {
		filled = barWidth
	}
	return barStyle.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("·", barWidth-filled))
}

func kv(label string, value any) string {
	return fmt.Sprintf("  %-12s %s", labelStyle.Render(label+":"), valueStyle.Render(fmt.Sprint(value)))
}
