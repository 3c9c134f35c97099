package tui

import (
	"sync"
	"testing"
)

// The active conversation is written by key handlers on the tview event
// goroutine and read by the bus event loop, so the accessors must be safe
// to call from both at once.
func TestActiveConversationConcurrentAccess(t *testing.T) {
	a := &App{}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if i%2 == 0 {
				a.setActive("conv-1")
			} else {
				a.setActive("")
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if got := a.active(); got != "" && got != "conv-1" {
				t.Errorf("active() = %q", got)
				return
			}
		}
	}()
	wg.Wait()

	a.setActive("conv-2")
	if got := a.active(); got != "conv-2" {
		t.Fatalf("active() = %q, want conv-2", got)
	}
}
