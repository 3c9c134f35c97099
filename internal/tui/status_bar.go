package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"botboard/internal/backend"

	"github.com/rivo/tview"
)

// StatusBar displays persistent backend, sync and statistics state.
type StatusBar struct {
	*tview.TextView
	host     string
	degraded bool
	stats    *backend.LiveStats
	flash    string
	hints    []string
}

// NewStatusBar creates the status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetHost updates the backend host display.
func (sb *StatusBar) SetHost(host string) {
	sb.host = host
	sb.render()
}

// SetDegraded toggles the persistent "could not refresh" indicator.
func (sb *StatusBar) SetDegraded(degraded bool) {
	sb.degraded = degraded
	sb.render()
}

// SetStats updates the live statistics segment.
func (sb *StatusBar) SetStats(stats *backend.LiveStats) {
	sb.stats = stats
	sb.render()
}

// SetHints replaces the keybinding hint segment for the focused view.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	sync := "[green]live[-]"
	if sb.degraded {
		sync = "[red]could not refresh[-]"
	}

	line := fmt.Sprintf(" [::b]botboard[-:-:-] | %s | %s", sb.host, sync)
	if seg := statsSegment(sb.stats); seg != "" {
		line += " | " + seg
	}
	if len(sb.hints) > 0 {
		line += fmt.Sprintf(" | [gray]%s[-]", strings.Join(sb.hints, " "))
	}
	line += " | " + time.Now().Format("15:04")
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	}

	_, _ = fmt.Fprint(sb, line)
}

func statsSegment(stats *backend.LiveStats) string {
	if stats == nil {
		return ""
	}
	parts := []string{
		fmt.Sprintf("chats:%d", stats.TotalChats),
		fmt.Sprintf("msgs:%d", stats.TotalMessages),
		fmt.Sprintf("active:%d", stats.ActiveConversations),
	}

	names := make([]string, 0, len(stats.Platforms))
	for name := range stats.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%d", channelTag(backend.Channel(name)), stats.Platforms[name].Active))
	}

	if !stats.Connected {
		parts = append(parts, "[red]backend offline[-]")
	}
	return strings.Join(parts, " ")
}
