// This file contains view rendering for the TUI.
package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.history {
		switch msg.Role {
		case "user":
			userStyle := m.styles.Bold.
				Foreground(m.styles.Primary).
				MarginTop(1)
			sb.WriteString(userStyle.Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(msg.Content))
			sb.WriteString("\n\n")

		case "system":
			style := m.styles.Muted
			if strings.HasPrefix(msg.Content, "Error:") {
				style = m.styles.ErrorText
			}
			sb.WriteString("  " + style.Render(msg.Content) + "\n")

		default: // "assistant"
			assistantStyle := m.styles.Bold.
				Foreground(m.styles.Accent).
				MarginTop(1)
			sb.WriteString(assistantStyle.Render("FutureCast") + "\n")
			sb.WriteString(m.safeRenderMarkdown(msg.Content))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// renderTree shows the dotted-path outline of the loaded tree.
func (m Model) renderTree() string {
	tree := m.session.State.Tree()
	if tree == nil {
		return m.styles.Muted.Render("No effect tree loaded.")
	}
	header := m.styles.Bold.Render("Effect Tree") + "  " +
		m.styles.Muted.Render("(Enter or /chat to return)")
	return header + "\n\n" + tree.Outline()
}

// renderSummary shows the summary as markdown.
func (m Model) renderSummary() string {
	summary := m.session.State.Summary()
	if summary == "" {
		return m.styles.Muted.Render("No summary loaded.")
	}
	header := m.styles.Bold.Render("Summary") + "  " +
		m.styles.Muted.Render("(Enter or /chat to return)")
	return header + "\n\n" + m.safeRenderMarkdown(summary)
}

// safeRenderMarkdown renders markdown with panic recovery. If glamour
// panics or errors, the raw text is shown instead.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()
	chatView := m.styles.Content.Render(m.viewport.View())

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Accent).
		Padding(0, 1)
	inputArea := inputStyle.Render(m.input.View())

	footer := m.renderFooter()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		chatView,
		inputArea,
		footer,
	)
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" FutureCast ")
	mode := m.styles.Badge.Render(m.viewMode.String())

	var status string
	if m.isLoading {
		status = lipgloss.JoinHorizontal(lipgloss.Center, m.spinner.View(), " ", m.styles.Badge.Render("Thinking..."))
	} else {
		status = m.styles.Success.Render("Ready")
	}

	headerLine := lipgloss.JoinHorizontal(
		lipgloss.Center,
		title,
		" ",
		mode,
		"  ",
		status,
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		headerLine,
		m.styles.RenderDivider(m.width),
	)
}

func (m Model) renderFooter() string {
	scenario := m.session.Scenario
	if len(scenario) > 48 {
		scenario = scenario[:45] + "..."
	}

	timestamp := time.Now().Format("15:04")
	help := m.styles.Muted.Render(fmt.Sprintf("%s | %s | /tree /summary /save /help /quit",
		scenario, timestamp))
	return lipgloss.NewStyle().
		MarginTop(1).
		Render(help)
}
