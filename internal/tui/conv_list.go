package tui

import (
	"fmt"
	"time"

	"botboard/internal/backend"

	"github.com/rivo/tview"
)

// ConvList is the conversation list table.
type ConvList struct {
	*tview.Table
	items      []backend.Conversation
	selectedFn func() (int, int)
}

// NewConvList creates the conversation list table.
func NewConvList() *ConvList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Conversations ")

	cl := &ConvList{Table: table}
	cl.selectedFn = table.GetSelection
	return cl
}

// Update refreshes the table with a new list snapshot. hasMore appends a
// footer row hinting that older conversations load on demand.
func (cl *ConvList) Update(items []backend.Conversation, hasMore bool) {
	row, _ := cl.selectedFn()
	cl.items = items
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" Ch").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 2, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 3, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, c := range items {
		name := c.Name
		if name == "" {
			name = c.ID
		}
		if c.IsGroup {
			name = "& " + name
		}
		if c.Banned {
			name = "[red]![-] " + name
		}
		if c.UnreadCount > 0 {
			name = fmt.Sprintf("%s [yellow](%d)[-]", name, c.UnreadCount)
		}

		cl.SetCell(i+1, 0, tview.NewTableCell(" "+channelTag(c.Channel)).SetMaxWidth(4))
		cl.SetCell(i+1, 1, tview.NewTableCell(" "+name).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(i+1, 2, tview.NewTableCell(" "+c.LastMessage).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(i+1, 3, tview.NewTableCell(" "+formatTimestamp(c.LastActivity)).SetMaxWidth(12))
	}

	if hasMore {
		cl.SetCell(len(items)+1, 1, tview.NewTableCell(" [gray]…[-]").SetSelectable(false))
	}

	if row > 0 && row <= len(items) {
		cl.Select(row, 0)
	}
}

// Selected returns the currently selected conversation, if any.
func (cl *ConvList) Selected() (backend.Conversation, bool) {
	row, _ := cl.selectedFn()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(cl.items) {
		return cl.items[idx], true
	}
	return backend.Conversation{}, false
}

// DistanceFromEnd returns how many rows lie between the selection and the
// last loaded conversation. Feeds the pager's near-end trigger.
func (cl *ConvList) DistanceFromEnd() int {
	row, _ := cl.selectedFn()
	d := len(cl.items) - row
	if d < 0 {
		return 0
	}
	return d
}

func channelTag(ch backend.Channel) string {
	switch ch {
	case backend.ChannelWhatsApp:
		return "[green]wa[-]"
	case backend.ChannelTelegram:
		return "[blue]tg[-]"
	case backend.ChannelMessenger:
		return "[purple]fb[-]"
	case backend.ChannelInstagram:
		return "[pink]ig[-]"
	default:
		return "??"
	}
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
