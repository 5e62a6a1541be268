package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/omochice/threadchat/internal/chat"
	"github.com/omochice/threadchat/internal/client/ws"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	authorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	timeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sentStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	receivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("238")).Padding(0, 1)
	readStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	alertStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// receiptGlyph returns the read-receipt icon shown next to a sent message.
func receiptGlyph(r chat.Receipt) string {
	switch r {
	case chat.ReceiptDelivered:
		return timeStyle.Render("✓")
	case chat.ReceiptRead:
		return readStyle.Render("✓✓")
	default:
		return ""
	}
}

// renderNode lays out one message for a region width wide. Sent messages are
// right-aligned, received ones left-aligned under their author.
func renderNode(n chat.Node, width int) string {
	bubbleWidth := width * 3 / 4
	if bubbleWidth < 10 {
		bubbleWidth = width
	}

	if n.Style == chat.StyleSent {
		bubble := sentStyle.MaxWidth(bubbleWidth).Render(wrap(n.Text, bubbleWidth-2))
		meta := timeStyle.Render(n.Time) + " " + receiptGlyph(n.Receipt)
		block := lipgloss.JoinVertical(lipgloss.Right, bubble, meta)
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, block)
	}

	var lines []string
	if n.Author != "" {
		lines = append(lines, authorStyle.Render(n.Author))
	}
	lines = append(lines,
		receivedStyle.MaxWidth(bubbleWidth).Render(wrap(n.Text, bubbleWidth-2)),
		timeStyle.Render(n.Time),
	)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderList renders every node, separated by blank lines.
func renderList(nodes []chat.Node, width int) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		parts = append(parts, renderNode(n, width))
	}
	return strings.Join(parts, "\n\n")
}

// stateBadge renders the connection state for the title bar.
func stateBadge(s ws.State, available bool) string {
	if !available {
		return timeStyle.Render("offline")
	}
	switch s {
	case ws.StateOpen:
		return readStyle.Render("● live")
	case ws.StateConnecting:
		return timeStyle.Render("○ connecting")
	default:
		return alertStyle.Render("○ " + s.String())
	}
}

func wrap(text string, width int) string {
	if width <= 0 || lipgloss.Width(text) <= width {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}
