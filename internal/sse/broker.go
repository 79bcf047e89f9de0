// Package sse implements a per-user Server-Sent Events feed of note changes.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/inkwell/internal/auth"
	"github.com/starford/inkwell/internal/notes"
)

// Event is a single SSE message addressed to one user.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type subscription struct {
	user string
	ch   chan []byte
}

type delivery struct {
	user  string
	event Event
}

type countReq struct {
	user string // empty counts every client
	resp chan int
}

// Broker fans events out to the SSE connections of their addressee.
//
// A single internal event loop owns the subscriber table. Public methods talk
// to it through channels, so no mutexes are required.
type Broker struct {
	heartbeat time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan subscription
	publishCh     chan delivery
	countReqCh    chan countReq

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. Connections receive a comment line every
// heartbeat so idle proxies keep them open.
func NewBroker(heartbeat time.Duration) *Broker {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}

	b := &Broker{
		heartbeat:     heartbeat,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan subscription),
		publishCh:     make(chan delivery, 256),
		countReqCh:    make(chan countReq),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[string]map[chan []byte]struct{})

	send := func(d delivery) {
		subs := clients[d.user]
		if len(subs) == 0 {
			return
		}
		payload, err := json.Marshal(d.event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", d.event.Type, payload))
		for ch := range subs {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall every writer.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for _, subs := range clients {
				for ch := range subs {
					close(ch)
				}
			}
			return

		case s := <-b.subscribeCh:
			if clients[s.user] == nil {
				clients[s.user] = make(map[chan []byte]struct{})
			}
			clients[s.user][s.ch] = struct{}{}

		case s := <-b.unsubscribeCh:
			if subs, ok := clients[s.user]; ok {
				if _, ok := subs[s.ch]; ok {
					delete(subs, s.ch)
					close(s.ch)
				}
				if len(subs) == 0 {
					delete(clients, s.user)
				}
			}

		case d := <-b.publishCh:
			send(d)

		case req := <-b.countReqCh:
			if req.user != "" {
				req.resp <- len(clients[req.user])
				continue
			}
			n := 0
			for _, subs := range clients {
				n += len(subs)
			}
			req.resp <- n
		}
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a connection for user and returns its channel.
func (b *Broker) Subscribe(user string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{user: user, ch: ch}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a connection and closes its channel.
func (b *Broker) Unsubscribe(user string, ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- subscription{user: user, ch: ch}:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connections of user, or of everyone when
// user is empty.
func (b *Broker) ClientCount(user string) int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- countReq{user: user, resp: resp}:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues event for the connections of user.
func (b *Broker) Publish(user string, event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- delivery{user: user, event: event}:
	case <-b.stopped:
	}
}

// Notify implements notes.Notifier.
func (b *Broker) Notify(ownerID string, c notes.Change) {
	b.Publish(ownerID, Event{Type: c.Kind, Data: c})
}

// ServeHTTP streams the caller's events (GET /api/events). The identity
// middleware must run first.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(id.UserID)
	defer b.Unsubscribe(id.UserID, ch)

	ping := time.NewTicker(b.heartbeat)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
