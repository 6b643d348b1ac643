package ciba

import (
	"sync"

	"github.com/dustin/go-broadcast"

	"github.com/oidcforge/core/pkg/logger"
)

// Notifier is the long-poll completion fan-out for pending CIBA requests:
// when a request's status resolves (Authenticated/Denied/Expired), Complete
// wakes every listener registered via Listen on that auth_req_id (such as a
// goroutine blocked in Engine.AwaitLongPoll).
type Notifier struct {
	mu            sync.Mutex
	channels      map[string]broadcast.Broadcaster
	listenerCount map[string]int
	log           *logger.Log
}

// NewNotifier builds an empty Notifier.
func NewNotifier(log *logger.Log) *Notifier {
	if log == nil {
		log = logger.NewSimple("ciba")
	}
	return &Notifier{
		channels:      map[string]broadcast.Broadcaster{},
		listenerCount: map[string]int{},
		log:           log.New("notify"),
	}
}

func (n *Notifier) broadcaster(authReqID string) broadcast.Broadcaster {
	b, ok := n.channels[authReqID]
	if !ok {
		b = broadcast.NewBroadcaster(1)
		n.channels[authReqID] = b
	}
	return b
}

// Listen registers a new listener channel for authReqID. The caller must
// call Close on the returned listener (via StopListening) once done, even
// on a timeout, or the broadcaster leaks.
func (n *Notifier) Listen(authReqID string) chan any {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan any)
	n.broadcaster(authReqID).Register(ch)
	n.listenerCount[authReqID]++
	return ch
}

// StopListening unregisters and closes a listener previously returned by
// Listen.
func (n *Notifier) StopListening(authReqID string, ch chan any) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.broadcaster(authReqID).Unregister(ch)
	close(ch)
	n.listenerCount[authReqID]--
	if n.listenerCount[authReqID] <= 0 {
		delete(n.listenerCount, authReqID)
		if b, ok := n.channels[authReqID]; ok {
			b.Close()
			delete(n.channels, authReqID)
		}
	}
}

// Complete wakes every listener currently waiting on authReqID.
func (n *Notifier) Complete(authReqID string, status CompletionStatus) {
	n.mu.Lock()
	b, ok := n.channels[authReqID]
	n.mu.Unlock()
	if !ok {
		return
	}
	b.Submit(status)
}

// CompletionStatus is the payload delivered to a waiting long-poll caller.
type CompletionStatus int

const (
	CompletionAuthenticated CompletionStatus = iota
	CompletionDenied
	CompletionExpired
)
