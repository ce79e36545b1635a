package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"lettrly/internal/letter"
	"lettrly/internal/live"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("130"))

	liveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("124")).
			Padding(0, 1).
			MarginTop(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			PaddingTop(1)

	unreadMark = lipgloss.NewStyle().Foreground(lipgloss.Color("124")).Render("▌")

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingTop(1)
)

const previewLength = 150

func header(v live.View) string {
	title := titleStyle.Render(fmt.Sprintf("Lettrly inbox (%d unread)", v.Batch.UnreadCount))

	status := liveStyle.Render("● live")
	if !v.IsConnected {
		text := "○ connecting"
		if v.Error != "" {
			text = "○ " + v.Error
		}
		status = offlineStyle.Render(text)
	}
	return title + "  " + status
}

func banner(b live.Batch) string {
	return bannerStyle.Render("✉  " + b.Headline() + "\n   " + b.Detail() + "   v: view  x: dismiss")
}

func footer() string {
	return footerStyle.Render("v: view new  x: dismiss  r: reconnect  ↑/↓: scroll  q: quit")
}

func renderLetters(v live.View) string {
	if v.Empty() {
		return "\nYour inbox is empty\nShare your letter link to start receiving letters\n"
	}

	var b strings.Builder
	if len(v.Unread) > 0 {
		b.WriteString(sectionStyle.Render(fmt.Sprintf("Unread (%d)", len(v.Unread))))
		b.WriteString("\n")
		for _, l := range v.Unread {
			b.WriteString(card(l, true))
		}
	}
	if len(v.Read) > 0 {
		b.WriteString(sectionStyle.Render(fmt.Sprintf("Read (%d)", len(v.Read))))
		b.WriteString("\n")
		for _, l := range v.Read {
			b.WriteString(card(l, false))
		}
	}
	return b.String()
}

func card(l letter.Letter, unread bool) string {
	mark := " "
	if unread {
		mark = unreadMark
	}
	fav := ""
	if l.IsFavorited {
		fav = " ★"
	}
	return fmt.Sprintf("%s %s · %s%s\n  %s\n", mark, l.Signature(), l.CreatedAt.Local().Format("Jan 2, 2006"), fav, preview(l.Content))
}

func preview(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	r := []rune(content)
	if len(r) > previewLength {
		return string(r[:previewLength]) + "..."
	}
	return content
}
