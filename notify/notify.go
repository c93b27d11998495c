// Package notify implements a single-slot notification channel for the
// dashboard UI. At most one notification is visible at a time: showing a
// new one replaces the current one and cancels its auto-hide timer.
// Errors and successes hide themselves after a fixed delay; loading
// notifications stay up until explicitly hidden.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification.
type Kind string

const (
	KindLoading Kind = "loading"
	KindError   Kind = "error"
	KindSuccess Kind = "success"
)

// Auto-hide delays. Loading never auto-hides.
const (
	ErrorAutoHide   = 5 * time.Second
	SuccessAutoHide = 3 * time.Second
)

// Action is a control rendered on a notification, typically dismiss or
// retry.
type Action struct {
	Label    string `json:"label"`
	Callback func() `json:"-"`
}

// RetryAction builds the standard retry control for a failed operation.
func RetryAction(fn func()) Action {
	return Action{Label: "Retry", Callback: fn}
}

// Notification is a single UI notification.
type Notification struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	Title    string    `json:"title,omitempty"`
	Message  string    `json:"message"`
	Progress bool      `json:"progress,omitempty"`
	Actions  []Action  `json:"actions,omitempty"`
	ShownAt  time.Time `json:"shownAt"`
}

// Retryable reports whether the notification carries any action.
func (n *Notification) Retryable() bool {
	return len(n.Actions) > 0
}

// Subscriber receives the active notification after every transition.
// A nil notification means the slot was cleared.
type Subscriber func(n *Notification)

// Channel is the single-slot notification state machine. All methods are
// safe for concurrent use.
type Channel struct {
	mu      sync.Mutex
	active  *Notification
	timer   *time.Timer
	subs    map[int]Subscriber
	nextSub int

	errorHide   time.Duration
	successHide time.Duration

	stats   *Statistics
	metrics *channelMetrics
}

// New creates a notification channel with the standard auto-hide delays.
func New(opts ...Option) *Channel {
	c := &Channel{
		subs:        make(map[int]Subscriber),
		errorHide:   ErrorAutoHide,
		successHide: SuccessAutoHide,
		stats:       newStatistics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ShowLoading displays a loading notification and returns its handle.
// It stays visible until HideLoading or Clear, or until another
// notification replaces it.
func (c *Channel) ShowLoading(message string, withProgress bool) string {
	return c.show(&Notification{
		Kind:     KindLoading,
		Message:  message,
		Progress: withProgress,
	}, 0)
}

// ShowError displays an error notification. With autoHide it goes away
// after the error delay; actions are rendered as dismiss/retry controls.
func (c *Channel) ShowError(title, message string, actions []Action, autoHide bool) string {
	delay := time.Duration(0)
	if autoHide {
		delay = c.errorHide
	}
	return c.show(&Notification{
		Kind:    KindError,
		Title:   title,
		Message: message,
		Actions: actions,
	}, delay)
}

// ShowSuccess displays a success notification. With autoHide it goes
// away after the success delay.
func (c *Channel) ShowSuccess(title, message string, autoHide bool) string {
	delay := time.Duration(0)
	if autoHide {
		delay = c.successHide
	}
	return c.show(&Notification{
		Kind:    KindSuccess,
		Title:   title,
		Message: message,
	}, delay)
}

func (c *Channel) show(n *Notification, autoHide time.Duration) string {
	n.ID = uuid.New().String()
	n.ShownAt = time.Now()

	c.mu.Lock()
	c.cancelTimerLocked()
	c.active = n
	if autoHide > 0 {
		// The timer captures the notification ID so a timer that fires
		// after its notification has been replaced is a no-op.
		id := n.ID
		c.timer = time.AfterFunc(autoHide, func() {
			c.hideByID(id)
		})
	}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	// ALWAYS track in stats (observability is not optional)
	c.stats.recordShown(n.Kind)
	if c.metrics != nil {
		c.metrics.shown.WithLabelValues(string(n.Kind)).Inc()
	}

	for _, sub := range subs {
		sub(n)
	}
	return n.ID
}

// hideByID clears the slot only if the given notification is still
// active. Late auto-hide timers land here after their notification has
// been replaced and must not touch the replacement.
func (c *Channel) hideByID(id string) {
	c.mu.Lock()
	if c.active == nil || c.active.ID != id {
		c.mu.Unlock()
		c.stats.recordStaleTimer()
		if c.metrics != nil {
			c.metrics.staleTimers.Inc()
		}
		return
	}
	c.active = nil
	c.timer = nil
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.stats.recordAutoHidden()
	if c.metrics != nil {
		c.metrics.autoHidden.Inc()
	}
	for _, sub := range subs {
		sub(nil)
	}
}

// HideLoading removes the loading notification identified by handle.
// It is a no-op if that notification has already been superseded.
func (c *Channel) HideLoading(handle string) {
	c.mu.Lock()
	if c.active == nil || c.active.Kind != KindLoading || c.active.ID != handle {
		c.mu.Unlock()
		return
	}
	c.active = nil
	c.cancelTimerLocked()
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.stats.recordHidden()
	for _, sub := range subs {
		sub(nil)
	}
}

// Clear unconditionally empties the slot and cancels any pending timer.
func (c *Channel) Clear() {
	c.mu.Lock()
	cleared := c.active != nil
	c.active = nil
	c.cancelTimerLocked()
	subs := c.subscribersLocked()
	c.mu.Unlock()

	if !cleared {
		return
	}
	c.stats.recordHidden()
	for _, sub := range subs {
		sub(nil)
	}
}

// Active returns the currently visible notification, if any.
func (c *Channel) Active() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Notification{}, false
	}
	return *c.active, true
}

// Subscribe registers a subscriber for notification transitions and
// returns a function that removes it. Subscribers are invoked outside
// the channel lock, in no particular order.
func (c *Channel) Subscribe(sub Subscriber) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = sub
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Stats returns a snapshot of channel statistics.
func (c *Channel) Stats() StatsSummary {
	return c.stats.Summary()
}

// must hold c.mu
func (c *Channel) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// must hold c.mu
func (c *Channel) subscribersLocked() []Subscriber {
	subs := make([]Subscriber, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	return subs
}
