package scroll

import "testing"

func TestFirstRenderScrollsInstantly(t *testing.T) {
	c := NewController(4)
	d := c.OnListChanged(10, false)
	if d.Action != ActionScrollInstant {
		t.Errorf("action = %s, want scroll_instant", d.Action)
	}
	if d.Pending != 0 {
		t.Errorf("pending = %d, want 0", d.Pending)
	}
	if !c.AtBottom() {
		t.Error("viewer not at bottom after initial scroll")
	}
}

func TestUnchangedCountDoesNothing(t *testing.T) {
	c := NewController(4)
	c.OnListChanged(10, false)

	d := c.OnListChanged(10, false)
	if d.Action != ActionNone {
		t.Errorf("action = %s, want none", d.Action)
	}
}

func TestOwnMessageOverridesReadingPosition(t *testing.T) {
	c := NewController(4)
	c.OnListChanged(10, false)
	c.ObserveScroll(50) // scrolled up into history

	d := c.OnListChanged(11, true)
	if d.Action != ActionScrollSmooth {
		t.Errorf("action = %s, want scroll_smooth (own message)", d.Action)
	}
	if d.Pending != 0 {
		t.Errorf("pending = %d, want 0", d.Pending)
	}
}

func TestAtBottomFollowsNewMessages(t *testing.T) {
	c := NewController(4)
	c.OnListChanged(10, false)
	c.ObserveScroll(2) // within threshold

	d := c.OnListChanged(12, false)
	if d.Action != ActionScrollSmooth {
		t.Errorf("action = %s, want scroll_smooth", d.Action)
	}
}

func TestReadingHistoryAccumulatesPending(t *testing.T) {
	c := NewController(4)
	c.OnListChanged(10, false)
	c.ObserveScroll(80)

	d := c.OnListChanged(11, false)
	if d.Action != ActionNone {
		t.Errorf("action = %s, want none", d.Action)
	}
	if d.Pending != 1 {
		t.Errorf("pending = %d, want 1", d.Pending)
	}

	d = c.OnListChanged(14, false)
	if d.Pending != 4 {
		t.Errorf("pending = %d, want 4", d.Pending)
	}
}

func TestIdempotentReapplication(t *testing.T) {
	c := NewController(4)
	c.OnListChanged(10, false)
	c.ObserveScroll(80)

	c.OnListChanged(11, false)
	// Rendering the same state again must not double-count.
	d := c.OnListChanged(11, false)
	if d.Action != ActionNone {
		t.Errorf("action = %s, want none", d.Action)
	}
	if d.Pending != 1 {
		t.Errorf("pending = %d after re-apply, want 1", d.Pending)
	}
}

func TestAcknowledgePending(t *testing.T) {
	c := NewController(4)
	c.OnListChanged(10, false)
	c.ObserveScroll(80)
	c.OnListChanged(13, false)

	d := c.AcknowledgePending()
	if d.Action != ActionScrollSmooth {
		t.Errorf("action = %s, want scroll_smooth", d.Action)
	}
	if c.Pending() != 0 {
		t.Errorf("pending = %d after acknowledge, want 0", c.Pending())
	}
	if !c.AtBottom() {
		t.Error("viewer not at bottom after acknowledge")
	}
}

func TestResetClearsState(t *testing.T) {
	c := NewController(4)
	c.OnListChanged(10, false)
	c.ObserveScroll(80)
	c.OnListChanged(12, false)

	c.Reset()

	if c.Pending() != 0 {
		t.Errorf("pending = %d after reset, want 0", c.Pending())
	}
	d := c.OnListChanged(5, false)
	if d.Action != ActionScrollInstant {
		t.Errorf("action after reset = %s, want scroll_instant (first render)", d.Action)
	}
}

func TestThresholdBoundary(t *testing.T) {
	c := NewController(4)
	c.OnListChanged(10, false)

	c.ObserveScroll(4)
	if !c.AtBottom() {
		t.Error("distance equal to threshold should count as at bottom")
	}
	c.ObserveScroll(5)
	if c.AtBottom() {
		t.Error("distance beyond threshold should not count as at bottom")
	}
}

func TestDecisionDeterminism(t *testing.T) {
	// Same state and same delta must always produce the same action.
	for i := 0; i < 3; i++ {
		c := NewController(4)
		c.OnListChanged(10, false)
		c.ObserveScroll(80)
		d := c.OnListChanged(12, false)
		if d.Action != ActionNone || d.Pending != 2 {
			t.Fatalf("run %d: decision = %+v, want none/2", i, d)
		}
	}
}
