package tui

import (
	"fmt"
	"strings"

	"botboard/internal/backend"

	"github.com/rivo/tview"
)

// MessagePane displays the cached message list of one conversation.
type MessagePane struct {
	*tview.TextView
	title     string
	pending   int
	lineCount int
}

// NewMessagePane creates the message pane.
func NewMessagePane() *MessagePane {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &MessagePane{TextView: tv}
}

// SetConversationName updates the pane title.
func (mp *MessagePane) SetConversationName(name string) {
	mp.title = name
	mp.renderTitle()
}

// SetPendingCount shows or hides the "N new messages" affordance in the
// title. Zero hides it.
func (mp *MessagePane) SetPendingCount(n int) {
	mp.pending = n
	mp.renderTitle()
}

func (mp *MessagePane) renderTitle() {
	if mp.pending > 0 {
		mp.SetTitle(fmt.Sprintf(" %s [yellow]· %d new, n:jump[-] ", mp.title, mp.pending))
		return
	}
	mp.SetTitle(fmt.Sprintf(" %s ", mp.title))
}

// Update rewrites the pane from a cached message list. The list arrives in
// ascending timestamp order and is rendered top to bottom. The viewport is
// not moved; scrolling is the caller's decision.
func (mp *MessagePane) Update(msgs []backend.Message) {
	mp.Clear()
	mp.lineCount = 0

	var b strings.Builder
	for _, m := range msgs {
		sender := m.SenderName
		if m.FromMe {
			sender = "You"
		}
		if sender == "" {
			sender = "?"
		}

		fmt.Fprintf(&b, "[::b]%s[-:-:-] [::d]%s %s[-:-:-]\n%s\n\n",
			sender, formatTimestamp(m.Timestamp), statusMark(m), renderContent(m.Content))
	}

	text := b.String()
	mp.lineCount = strings.Count(text, "\n")
	_, _ = fmt.Fprint(mp, text)
}

// DistanceFromBottom returns how many rendered rows lie below the visible
// region. Zero means the viewer is at the very bottom.
func (mp *MessagePane) DistanceFromBottom() int {
	rowOffset, _ := mp.GetScrollOffset()
	_, _, _, height := mp.GetInnerRect()
	d := mp.lineCount - (rowOffset + height)
	if d < 0 {
		return 0
	}
	return d
}

func renderContent(c backend.Content) string {
	switch c.Type {
	case backend.ContentText, "":
		return c.Text
	case backend.ContentReaction:
		return fmt.Sprintf("[::d]reacted %s[-:-:-]", c.Text)
	default:
		label := fmt.Sprintf("[::d][%s][-:-:-]", c.Type)
		if c.Text != "" {
			label += " " + c.Text
		}
		return label
	}
}

func statusMark(m backend.Message) string {
	if !m.FromMe {
		return ""
	}
	switch m.Status {
	case backend.StatusPending:
		return "[gray]…[-]"
	case backend.StatusFailed:
		return "[red]failed[-]"
	case backend.StatusSent:
		return "✓"
	case backend.StatusDelivered:
		return "✓✓"
	case backend.StatusRead:
		return "[blue]✓✓[-]"
	default:
		return ""
	}
}
