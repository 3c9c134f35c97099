package scroll

import "sync"

// Action is what the message pane should do after a list update.
type Action int

const (
	// ActionNone leaves the viewport untouched.
	ActionNone Action = iota
	// ActionScrollInstant jumps to the bottom without animation.
	ActionScrollInstant
	// ActionScrollSmooth scrolls to the bottom with animation.
	ActionScrollSmooth
)

func (a Action) String() string {
	switch a {
	case ActionScrollInstant:
		return "scroll_instant"
	case ActionScrollSmooth:
		return "scroll_smooth"
	default:
		return "none"
	}
}

// Decision is the outcome of one decision-table evaluation. Pending is the
// count behind the "N new messages" affordance; zero hides it.
type Decision struct {
	Action  Action
	Pending int
}

// Controller decides whether a message-pane update should auto-scroll the
// viewer, leave the view alone, or surface a new-messages affordance. Its
// state is bound to the viewing session of a single conversation and is
// reset when the open conversation changes.
//
// The decision table is deterministic and idempotent: re-applying an
// update with an unchanged message count neither scrolls nor counts twice.
type Controller struct {
	mu        sync.Mutex
	threshold int

	atBottom    bool
	pending     int
	initialDone bool
	lastCount   int
}

// NewController creates a controller. threshold is the distance from the
// bottom of the pane, in rows, within which the viewer still counts as
// being at the bottom.
func NewController(threshold int) *Controller {
	return &Controller{threshold: threshold}
}

// Reset clears all state for a newly opened conversation.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.atBottom = false
	c.pending = 0
	c.initialDone = false
	c.lastCount = 0
}

// ObserveScroll records the viewer's current distance from the bottom of
// the scrollable content. Called on every scroll event in the pane.
func (c *Controller) ObserveScroll(distanceFromBottom int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.atBottom = distanceFromBottom <= c.threshold
}

// OnListChanged applies the decision table for a rendered message list of
// newCount entries. newestFromMe reports whether the newest appended
// message is the operator's own. Rules, evaluated in order:
//
//  1. first render for this conversation: instant scroll to bottom;
//  2. count decreased or unchanged: nothing;
//  3. newest appended message is outbound: smooth scroll to bottom;
//  4. viewer was at the bottom before the update: smooth scroll to bottom;
//  5. otherwise: keep the viewport, grow the pending-new-messages count.
func (c *Controller) OnListChanged(newCount int, newestFromMe bool) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialDone {
		c.initialDone = true
		c.lastCount = newCount
		c.pending = 0
		c.atBottom = true
		return Decision{Action: ActionScrollInstant}
	}

	if newCount <= c.lastCount {
		c.lastCount = newCount
		return Decision{Action: ActionNone, Pending: c.pending}
	}

	appended := newCount - c.lastCount
	c.lastCount = newCount

	if newestFromMe {
		c.pending = 0
		c.atBottom = true
		return Decision{Action: ActionScrollSmooth}
	}

	if c.atBottom {
		c.pending = 0
		return Decision{Action: ActionScrollSmooth}
	}

	c.pending += appended
	return Decision{Action: ActionNone, Pending: c.pending}
}

// AcknowledgePending is the "N new messages" affordance being activated:
// smooth scroll to bottom and clear the count.
func (c *Controller) AcknowledgePending() Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = 0
	c.atBottom = true
	return Decision{Action: ActionScrollSmooth}
}

// Pending returns the current pending-new-messages count.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// AtBottom reports whether the viewer is within the at-bottom threshold.
func (c *Controller) AtBottom() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.atBottom
}
