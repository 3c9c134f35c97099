package tui

import (
	"context"
	"net/url"
	"sync"
	"time"

	"botboard/internal/backend"
	"botboard/internal/bus"
	"botboard/internal/config"
	"botboard/internal/engine"
	"botboard/internal/scroll"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const flashDuration = 5 * time.Second

// App is the operator console shell. All engine state reaches the screen
// through bus events funneled into QueueUpdateDraw.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	engine   *engine.Engine
	registry *Registry
	scroll   *scroll.Controller
	flash    *Flash

	statusBar *StatusBar
	convList  *ConvList
	msgPane   *MessagePane
	composer  *Composer

	// activeConv is written on the tview event goroutine and read on the
	// bus event loop.
	activeMu   sync.Mutex
	activeConv string

	filterUnread bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the console application.
func NewApp(e *engine.Engine, cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		engine:    e,
		registry:  NewRegistry(),
		scroll:    scroll.NewController(cfg.ScrollThreshold),
		flash:     &Flash{},
		statusBar: NewStatusBar(),
		convList:  NewConvList(),
		msgPane:   NewMessagePane(),
		composer:  NewComposer(),
		ctx:       ctx,
		cancel:    cancel,
	}

	host := cfg.BackendURL
	if u, err := url.Parse(cfg.BackendURL); err == nil && u.Host != "" {
		host = u.Host
	}
	a.statusBar.SetHost(host)

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	a.refreshHints()

	return a
}

// refreshHints repaints the status bar hint segment for the front page.
// The composer focus and chat exit keys live in the input capture rather
// than the registry, so the chat page appends them by hand.
func (a *App) refreshHints() {
	page, _ := a.pages.GetFrontPage()
	hints := a.registry.Hints(page)
	if page == "chat" {
		hints = append(hints, "i:compose", "esc:back")
	}
	a.statusBar.SetHints(hints)
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddView("list", "filter", &Action{
		Rune: 'f', Key: tcell.KeyRune,
		Description: "f:unread", Visible: true,
		Handler: func() { a.toggleFilter() },
	})
	a.registry.AddView("list", "moderate", &Action{
		Rune: 'b', Key: tcell.KeyRune,
		Description: "b:ban", Visible: true,
		Handler: func() { a.toggleBan() },
	})
	a.registry.AddView("chat", "jump", &Action{
		Rune: 'n', Key: tcell.KeyRune,
		Description: "n:new msgs", Visible: true,
		Handler: func() { a.acknowledgePending() },
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectionChangedFunc(func(row, col int) {
		a.engine.MaybeLoadMore(a.convList.DistanceFromEnd())
	})

	a.convList.SetSelectedFunc(func(row, col int) {
		if conv, ok := a.convList.Selected(); ok {
			a.openConversation(conv)
		}
	})

	a.composer.SetOnSend(func(text string) {
		conv := a.active()
		if conv == "" {
			return
		}
		if _, err := a.engine.SendOptimistic(conv, text); err != nil {
			a.flash.Set("Send failed: "+err.Error(), flashDuration)
			a.statusBar.SetFlash(a.flash.Get())
		}
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgPane, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("list", a.convList, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape && currentPage == "chat" {
			a.closeConversation()
			return nil
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		// 'i' focuses the composer (only when not already in an input field).
		if currentPage == "chat" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}

		return event
	})

	// The pane owns key scrolling; the controller just observes the
	// resulting offset after every draw.
	a.app.SetAfterDrawFunc(func(_ tcell.Screen) {
		if page, _ := a.pages.GetFrontPage(); page == "chat" {
			a.scroll.ObserveScroll(a.msgPane.DistanceFromBottom())
		}
	})
}

func (a *App) active() string {
	a.activeMu.Lock()
	defer a.activeMu.Unlock()
	return a.activeConv
}

func (a *App) setActive(conversationID string) {
	a.activeMu.Lock()
	a.activeConv = conversationID
	a.activeMu.Unlock()
}

func (a *App) openConversation(conv backend.Conversation) {
	a.setActive(conv.ID)
	a.scroll.Reset()
	a.engine.SelectConversation(conv.ID)

	name := conv.Name
	if name == "" {
		name = conv.ID
	}
	a.msgPane.SetConversationName(name)
	a.msgPane.SetPendingCount(0)
	a.msgPane.Update(nil)

	if entry, ok := a.engine.Messages(conv.ID); ok {
		a.renderActive(entry.Messages, false)
	}

	a.pages.SwitchToPage("chat")
	a.refreshHints()
	a.app.SetFocus(a.msgPane)
}

func (a *App) closeConversation() {
	a.setActive("")
	a.engine.DeselectConversation()
	a.pages.SwitchToPage("list")
	a.refreshHints()
	a.app.SetFocus(a.convList)
}

// renderActive repaints the message pane and applies the scroll decision
// for the active conversation's current cache entry.
func (a *App) renderActive(msgs []backend.Message, newestFromMe bool) {
	decision := a.scroll.OnListChanged(len(msgs), newestFromMe)
	a.msgPane.Update(msgs)
	switch decision.Action {
	case scroll.ActionScrollInstant, scroll.ActionScrollSmooth:
		a.msgPane.ScrollToEnd()
	}
	a.msgPane.SetPendingCount(decision.Pending)
}

func (a *App) acknowledgePending() {
	a.scroll.AcknowledgePending()
	a.msgPane.ScrollToEnd()
	a.msgPane.SetPendingCount(0)
}

func (a *App) toggleFilter() {
	a.filterUnread = !a.filterUnread
	filter := ""
	if a.filterUnread {
		filter = "unread"
	}
	a.engine.ApplyFilter(filter)
}

func (a *App) toggleBan() {
	conv, ok := a.convList.Selected()
	if !ok {
		return
	}
	go func() {
		if err := a.engine.SetModeration(conv.ID, !conv.Banned, "operator"); err != nil {
			a.flash.Set("Moderation failed: "+err.Error(), flashDuration)
		}
		a.app.QueueUpdateDraw(func() {
			a.convList.Update(a.engine.Conversations(), a.engine.HasMoreConversations())
			a.statusBar.SetFlash(a.flash.Get())
		})
	}()
}

// Run starts the console and blocks until it exits.
func (a *App) Run() error {
	go a.eventLoop()
	a.convList.Update(a.engine.Conversations(), a.engine.HasMoreConversations())
	return a.app.Run()
}

// eventLoop translates bus events into screen updates.
func (a *App) eventLoop() {
	ch, unsub := a.engine.Subscribe("", 64)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			a.handleEvent(evt)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindCacheUpdated:
		upd, ok := evt.Payload.(bus.CacheUpdate)
		if !ok || upd.ConversationID != a.active() {
			return
		}
		entry, ok := a.engine.Messages(upd.ConversationID)
		if !ok {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.renderActive(entry.Messages, upd.NewestFromMe)
		})

	case bus.KindListUpdated:
		a.app.QueueUpdateDraw(func() {
			a.convList.Update(a.engine.Conversations(), a.engine.HasMoreConversations())
		})

	case bus.KindStatsUpdated:
		stats, ok := evt.Payload.(*backend.LiveStats)
		if !ok {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetStats(stats)
		})

	case bus.KindSyncDegraded:
		a.flash.Set("Sync degraded, retrying", flashDuration)
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetDegraded(true)
			a.statusBar.SetFlash(a.flash.Get())
		})

	case bus.KindSyncRecovered:
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetDegraded(false)
		})

	case bus.KindSendFailed:
		upd, ok := evt.Payload.(bus.SendUpdate)
		if !ok {
			return
		}
		a.flash.Set("Send failed: "+upd.Error, flashDuration)
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetFlash(a.flash.Get())
		})
	}
}

// Stop gracefully shuts down the console.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
