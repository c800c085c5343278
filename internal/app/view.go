package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/nmoreno/readback/internal/atc"
	"github.com/nmoreno/readback/internal/ui"
)

// View renders the full practice screen.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	switch m.overlay {
	case OverlayFrequencyEdit:
		sections = append(sections, m.renderFrequencyModal())
	case OverlayScores:
		sections = append(sections, m.renderScores())
	default:
		if m.phase == PhaseCompleted {
			sections = append(sections, m.renderCompletionModal())
		} else {
			sections = append(sections, m.renderMainContent())
			if m.phase == PhaseReviewing || m.phase == PhasePlaying {
				sections = append(sections, m.renderReviewPanel())
			}
		}
	}

	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("READBACK")

	session := ui.DimStyle.Render(" — session " + orDash(m.sessionID))
	freq := ui.DimStyle.Render("  " + atc.FormatFrequency(m.frequency) + " MHz")

	var review string
	if m.reviewEnabled {
		review = ui.BadgeStyle.Render("  [REVIEW]")
	}

	return title + session + freq + review
}

func (m Model) renderStatusBar() string {
	switch m.phase {
	case PhaseRecording:
		return ui.RecordingDotStyle.Render("● REC")
	case PhaseReviewing:
		return ui.BadgeStyle.Render("■ REVIEW")
	case PhasePlaying:
		return ui.BadgeStyle.Render("▶ PLAYING")
	case PhaseSubmitting:
		return ui.LoadingStyle.Render("⟳ ANALYZING")
	case PhaseCompleted:
		return ui.BadgeStyle.Render("✓ COMPLETE")
	default:
		return ui.IdleDotStyle.Render("○ IDLE")
	}
}

func (m Model) renderMainContent() string {
	width := max(20, m.width-4)

	switch m.displayState() {
	case DisplayLoading:
		return ui.LoadingStyle.Render("  Analyzing your transmission...")

	case DisplayFeedback:
		return "  " + ui.FeedbackStyle.Render(wrapJoin(m.feedback, width))

	case DisplayPreviousReply:
		header := ui.DimStyle.Render("  Previous reply:")
		body := "  " + ui.PrevReplyStyle.Render(wrapJoin(m.prevControllerText, width))
		return header + "\n" + body

	case DisplayReply:
		text := m.displayedReply()
		if m.typing {
			text += "▌"
		}
		return "  " + ui.ReplyStyle.Render(wrapJoin(text, width))

	default:
		if !m.micReady {
			return ui.DimStyle.Render("  Waiting for the microphone check...")
		}
		return ui.DimStyle.Render("  Press Space to transmit")
	}
}

func (m Model) renderReviewPanel() string {
	if m.take == nil {
		return ""
	}
	dur := m.take.Duration.Seconds()
	label := fmt.Sprintf("Take recorded — %.1fs", dur)

	var status string
	if m.phase == PhasePlaying {
		status = ui.BadgeStyle.Render(" (playing)")
	}

	hints := ui.DimStyle.Render("p play   d discard   Enter send")
	return "  " + ui.PanelTitleStyle.Render(label) + status + "\n  " + hints
}

func (m Model) renderFrequencyModal() string {
	var lines []string
	lines = append(lines, "  "+ui.PanelTitleStyle.Render("Frequency"))
	lines = append(lines, fmt.Sprintf("  %s MHz▌", m.freqInput))
	lines = append(lines, "  "+ui.DimStyle.Render(fmt.Sprintf(
		"Enter a frequency between %.2f and %.2f", atc.FrequencyMin, atc.FrequencyMax)))
	if m.freqErr != "" {
		lines = append(lines, "  "+ui.ErrorStyle.Render(m.freqErr))
	}
	lines = append(lines, "  "+ui.DimStyle.Render("Enter save   Esc cancel"))
	return strings.Join(lines, "\n")
}

func (m Model) renderScores() string {
	var lines []string
	lines = append(lines, "  "+ui.PanelTitleStyle.Render(
		fmt.Sprintf("SCORES — session %s (%d turns)", orDash(m.sessionID), len(m.scores))))

	if len(m.scores) == 0 {
		lines = append(lines, "  "+ui.DimStyle.Render("No turns recorded yet."))
	}
	width := max(20, m.width-8)
	for i, turn := range m.scores {
		ts := ui.DimStyle.Render(turn.CreatedAt.Format("15:04:05"))
		lines = append(lines, fmt.Sprintf("  %2d. %s", i+1, ts))
		if turn.ControllerText != "" {
			lines = append(lines, "      "+ui.ReplyStyle.Render(truncate(turn.ControllerText, width)))
		}
		if turn.Feedback != "" {
			lines = append(lines, "      "+ui.FeedbackStyle.Render(truncate(turn.Feedback, width)))
		}
	}

	if m.scoresFromCompletion {
		lines = append(lines, "  "+ui.DimStyle.Render("Esc quit"))
	} else {
		lines = append(lines, "  "+ui.DimStyle.Render("Esc back"))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderCompletionModal() string {
	var lines []string
	lines = append(lines, "  "+ui.BadgeStyle.Render("Session complete!"))
	lines = append(lines, "  "+ui.ReplyStyle.Render("You finished this practice session."))
	lines = append(lines, "")
	lines = append(lines, "  "+ui.FooterKeyStyle.Render("g")+ui.FooterDescStyle.Render(" View scores")+
		"   "+ui.FooterKeyStyle.Render("n")+ui.FooterDescStyle.Render(" New session"))
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	var parts []string

	switch {
	case m.overlay == OverlayFrequencyEdit:
		parts = append(parts, key("Enter", "Save"), key("Esc", "Cancel"))
	case m.overlay == OverlayScores:
		parts = append(parts, key("Esc", "Back"))
	case m.phase == PhaseCompleted:
		parts = append(parts, key("g", "Scores"), key("n", "New"))
	case m.phase == PhaseReviewing || m.phase == PhasePlaying:
		parts = append(parts, key("p", "Play"), key("d", "Discard"), key("Enter", "Send"))
	case m.phase == PhaseRecording:
		parts = append(parts, key("Space", "Stop"))
	default:
		if m.micReady {
			parts = append(parts, key("Space", "Transmit"))
		}
		parts = append(parts, key("f", "Frequency"), key("v", "Review"), key("c", "Scores"))
		if m.prevControllerText != "" {
			parts = append(parts, key("r", "Last reply"))
		}
	}

	parts = append(parts, key("q", "Quit"))
	return strings.Join(parts, "  ")
}

// Helpers

func key(k, desc string) string {
	return ui.FooterKeyStyle.Render(k) + ui.FooterDescStyle.Render(" "+desc)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapJoin(text string, width int) string {
	return strings.Join(wrapText(text, width), "\n  ")
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
