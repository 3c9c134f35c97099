package pager

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"botboard/internal/backend"
	"botboard/internal/bus"

	"go.uber.org/zap"
)

// fakeFetcher serves conversation pages from a fixed list.
type fakeFetcher struct {
	mu      sync.Mutex
	all     []backend.Conversation
	total   int
	calls   int
	err     error
	block   chan struct{} // when set, fetches wait until closed
	lastReq struct{ pageSize, offset int }
	filters []string
}

func (f *fakeFetcher) ListConversations(_ context.Context, filter string, pageSize, offset int) (*backend.ConversationPage, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq.pageSize, f.lastReq.offset = pageSize, offset
	f.filters = append(f.filters, filter)
	block := f.block
	err := f.err
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	end := offset + pageSize
	if end > len(f.all) {
		end = len(f.all)
	}
	items := []backend.Conversation{}
	if offset < len(f.all) {
		items = append(items, f.all[offset:end]...)
	}
	return &backend.ConversationPage{Items: items, Total: f.total}, nil
}

func convs(from, to int) []backend.Conversation {
	var out []backend.Conversation
	for i := from; i <= to; i++ {
		out = append(out, backend.Conversation{
			ID:      fmt.Sprintf("c%d", i),
			Name:    fmt.Sprintf("Conversation %d", i),
			Channel: backend.ChannelWhatsApp,
		})
	}
	return out
}

func newTestPager(f *fakeFetcher, pageSize int) *Pager {
	return New(f, bus.New(), zap.NewNop(), pageSize, 8)
}

func TestFirstPageReplacesList(t *testing.T) {
	f := &fakeFetcher{all: convs(1, 60), total: 60}
	p := newTestPager(f, 50)

	p.LoadFirstPage(context.Background(), "")

	items := p.Items()
	if len(items) != 50 {
		t.Fatalf("got %d items, want 50", len(items))
	}
	if !p.HasMore() {
		t.Error("HasMore() = false, want true (60 total)")
	}
}

func TestOverlappingPagesDeduplicated(t *testing.T) {
	// The backend list grew between page fetches, so page 2 re-serves
	// some of page 1's tail.
	f := &fakeFetcher{all: convs(1, 97), total: 97}
	p := newTestPager(f, 50)

	p.LoadFirstPage(context.Background(), "")

	// Simulate the overlap: page 2 starts at 47 (ids 48..97).
	f.mu.Lock()
	f.all = convs(1, 97)
	f.mu.Unlock()
	p.mu.Lock()
	p.offset = 47
	p.mu.Unlock()
	p.LoadNextPage(context.Background())

	items := p.Items()
	if len(items) != 97 {
		t.Fatalf("got %d items, want 97", len(items))
	}
	seen := map[string]bool{}
	for _, c := range items {
		if seen[c.ID] {
			t.Fatalf("duplicate id %s in merged list", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestNextPageNoOpWhenExhausted(t *testing.T) {
	f := &fakeFetcher{all: convs(1, 30), total: 30}
	p := newTestPager(f, 50)

	p.LoadFirstPage(context.Background(), "")
	if p.HasMore() {
		t.Fatal("HasMore() = true, want false (30 of 30 fetched)")
	}

	before := f.calls
	p.LoadNextPage(context.Background())
	if f.calls != before {
		t.Error("LoadNextPage fetched despite exhaustion")
	}
}

func TestNextPageNoOpWhileInFlight(t *testing.T) {
	f := &fakeFetcher{all: convs(1, 200), total: 200}
	p := newTestPager(f, 50)
	p.LoadFirstPage(context.Background(), "")

	block := make(chan struct{})
	f.mu.Lock()
	f.block = block
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.LoadNextPage(context.Background())
		close(done)
	}()

	// Wait until the first load is actually in flight.
	deadline := time.Now().Add(time.Second)
	for {
		f.mu.Lock()
		calls := f.calls
		f.mu.Unlock()
		if calls >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	p.LoadNextPage(context.Background()) // must not start a second fetch

	f.mu.Lock()
	calls := f.calls
	f.block = nil
	f.mu.Unlock()
	close(block)
	<-done

	if calls != 2 {
		t.Errorf("fetch calls = %d, want 2 (first page + one next page)", calls)
	}
}

func TestHasMoreWithoutTotalUsesFullPageHeuristic(t *testing.T) {
	f := &fakeFetcher{all: convs(1, 50), total: 0}
	p := newTestPager(f, 50)

	p.LoadFirstPage(context.Background(), "")
	if !p.HasMore() {
		t.Error("full page without total should imply more")
	}

	p.LoadNextPage(context.Background()) // empty page
	if p.HasMore() {
		t.Error("short page without total should imply exhaustion")
	}
}

func TestFetchErrorKeepsList(t *testing.T) {
	f := &fakeFetcher{all: convs(1, 10), total: 10}
	p := newTestPager(f, 50)
	p.LoadFirstPage(context.Background(), "")

	f.mu.Lock()
	f.err = fmt.Errorf("connection refused")
	f.mu.Unlock()
	p.Reload(context.Background())

	if len(p.Items()) != 10 {
		t.Errorf("list shrank to %d after fetch error, want 10", len(p.Items()))
	}
}

func TestReloadResetsSeenIdentifiers(t *testing.T) {
	f := &fakeFetcher{all: convs(1, 10), total: 10}
	p := newTestPager(f, 50)
	p.LoadFirstPage(context.Background(), "")
	p.Reload(context.Background())

	if len(p.Items()) != 10 {
		t.Errorf("got %d items after reload, want 10 (seen set must reset)", len(p.Items()))
	}
}

func TestClearUnread(t *testing.T) {
	f := &fakeFetcher{all: []backend.Conversation{{ID: "c1", UnreadCount: 7}}, total: 1}
	p := newTestPager(f, 50)
	p.LoadFirstPage(context.Background(), "")

	p.ClearUnread("c1")

	if got := p.Items()[0].UnreadCount; got != 0 {
		t.Errorf("UnreadCount = %d, want 0", got)
	}
}

func TestMaybeLoadNextRespectsProximity(t *testing.T) {
	f := &fakeFetcher{all: convs(1, 120), total: 120}
	p := newTestPager(f, 50)
	p.LoadFirstPage(context.Background(), "")

	before := f.calls
	p.MaybeLoadNext(context.Background(), 20) // beyond proximity of 8
	if f.calls != before {
		t.Error("MaybeLoadNext fetched outside the trigger proximity")
	}

	p.MaybeLoadNext(context.Background(), 3)
	if f.calls != before+1 {
		t.Error("MaybeLoadNext did not fetch within the trigger proximity")
	}
}

func TestFilterChangeDuringInFlightLoadIsNotDropped(t *testing.T) {
	f := &fakeFetcher{all: convs(1, 10), total: 10}
	p := newTestPager(f, 50)

	block := make(chan struct{})
	f.mu.Lock()
	f.block = block
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.LoadFirstPage(context.Background(), "")
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		f.mu.Lock()
		calls := f.calls
		f.mu.Unlock()
		if calls >= 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The operator switches filters while the reload is still in flight.
	p.LoadFirstPage(context.Background(), "unread")

	f.mu.Lock()
	calls := f.calls
	f.mu.Unlock()
	if calls != 1 {
		t.Fatalf("calls = %d while in flight, want 1", calls)
	}

	f.mu.Lock()
	f.block = nil
	f.mu.Unlock()
	close(block)
	<-done

	f.mu.Lock()
	filters := append([]string(nil), f.filters...)
	f.mu.Unlock()
	if len(filters) != 2 || filters[1] != "unread" {
		t.Fatalf("filters = %v, want the queued unread refresh to run", filters)
	}
}

func TestReloadSkippedWhileInFlight(t *testing.T) {
	f := &fakeFetcher{all: convs(1, 10), total: 10}
	p := newTestPager(f, 50)

	block := make(chan struct{})
	f.mu.Lock()
	f.block = block
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.LoadFirstPage(context.Background(), "")
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		f.mu.Lock()
		calls := f.calls
		f.mu.Unlock()
		if calls >= 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// An operator filter change queues; a racing poll reload must not
	// clobber it with the stale filter.
	p.LoadFirstPage(context.Background(), "unread")
	p.Reload(context.Background())

	f.mu.Lock()
	f.block = nil
	f.mu.Unlock()
	close(block)
	<-done

	f.mu.Lock()
	filters := append([]string(nil), f.filters...)
	f.mu.Unlock()
	if len(filters) != 2 || filters[1] != "unread" {
		t.Fatalf("filters = %v, want only the queued unread refresh", filters)
	}
}
