package services

import (
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/sirupsen/logrus"
)

// NotificationKind is the tone of a status message
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notification is the single status message shown to the operator
type Notification struct {
	Text    string           `json:"text"`
	Kind    NotificationKind `json:"kind"`
	ShownAt time.Time        `json:"shown_at"`
}

// NotificationEvent is delivered to subscribers on every change. Visible is
// false when the slot was emptied, by timer or by Clear.
type NotificationEvent struct {
	Notification Notification
	Visible      bool
}

type notificationSubscriber struct {
	id       int
	callback func(NotificationEvent)
}

// NotificationCenter holds at most one message. Showing a message replaces
// the current one and restarts the dismiss timer; only the timer of the
// latest message can clear the slot.
type NotificationCenter struct {
	clock        shared.Clock
	dismissAfter time.Duration

	mutex       sync.Mutex
	current     Notification
	visible     bool
	generation  uint64
	timer       shared.Timer
	subscribers []notificationSubscriber
	nextID      int
}

// NewNotificationCenter creates a center. A nil clock uses the wall clock;
// a non-positive dismissAfter uses the default of 4000ms.
func NewNotificationCenter(clock shared.Clock, dismissAfter time.Duration) *NotificationCenter {
	if clock == nil {
		clock = shared.RealClock{}
	}
	if dismissAfter <= 0 {
		dismissAfter = shared.DefaultDismissAfter
	}
	return &NotificationCenter{clock: clock, dismissAfter: dismissAfter}
}

// ShowSuccess shows a success message
func (n *NotificationCenter) ShowSuccess(text string) {
	n.Show(text, NotificationSuccess)
}

// ShowError shows an error message
func (n *NotificationCenter) ShowError(text string) {
	n.Show(text, NotificationError)
}

// Show replaces the current message and restarts the dismiss timer
func (n *NotificationCenter) Show(text string, kind NotificationKind) {
	n.mutex.Lock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.generation++
	generation := n.generation
	n.current = Notification{Text: text, Kind: kind, ShownAt: n.clock.Now()}
	n.visible = true
	n.timer = n.clock.AfterFunc(n.dismissAfter, func() { n.expire(generation) })
	event := NotificationEvent{Notification: n.current, Visible: true}
	subscribers := n.subscribersLocked()
	n.mutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"component": "NotificationCenter",
		"kind":      kind,
	}).Debug(text)

	publish(subscribers, event)
}

// Clear empties the slot early and cancels the pending timer
func (n *NotificationCenter) Clear() {
	n.mutex.Lock()
	if !n.visible {
		n.mutex.Unlock()
		return
	}
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.generation++
	event := NotificationEvent{Notification: n.current, Visible: false}
	n.current = Notification{}
	n.visible = false
	subscribers := n.subscribersLocked()
	n.mutex.Unlock()

	publish(subscribers, event)
}

// Current returns the visible message, if any
func (n *NotificationCenter) Current() (Notification, bool) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return n.current, n.visible
}

// Subscribe registers callback for change events. Callbacks run on the
// goroutine that caused the change, outside the center's lock.
func (n *NotificationCenter) Subscribe(callback func(NotificationEvent)) (unsubscribe func()) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	n.nextID++
	id := n.nextID
	n.subscribers = append(n.subscribers, notificationSubscriber{id: id, callback: callback})

	return func() {
		n.mutex.Lock()
		defer n.mutex.Unlock()
		for i, subscriber := range n.subscribers {
			if subscriber.id == id {
				n.subscribers = append(n.subscribers[:i:i], n.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (n *NotificationCenter) expire(generation uint64) {
	n.mutex.Lock()
	// a newer Show or a Clear owns the slot now
	if generation != n.generation || !n.visible {
		n.mutex.Unlock()
		return
	}
	event := NotificationEvent{Notification: n.current, Visible: false}
	n.current = Notification{}
	n.visible = false
	n.timer = nil
	subscribers := n.subscribersLocked()
	n.mutex.Unlock()

	publish(subscribers, event)
}

func (n *NotificationCenter) subscribersLocked() []notificationSubscriber {
	return append([]notificationSubscriber(nil), n.subscribers...)
}

func publish(subscribers []notificationSubscriber, event NotificationEvent) {
	for _, subscriber := range subscribers {
		subscriber.callback(event)
	}
}
