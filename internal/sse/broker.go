// Package sse streams catalog build notifications to browsers over
// Server-Sent Events.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event types sent on the stream.
const (
	TypeBuildCompleted = "build.completed"
	TypeBuildFailed    = "build.failed"
	TypeSummaryUpdated = "summary.updated"
)

// Event is a single message on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// BuildEvent describes the outcome of one catalog build.
type BuildEvent struct {
	BuiltAt        time.Time `json:"built_at"`
	Plasmids       int       `json:"plasmids"`
	ErrorRecords   int       `json:"error_records"`
	WarningRecords int       `json:"warning_records"`
	Error          string    `json:"error,omitempty"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithSummaryThrottle limits summary.updated to one per d.
func WithSummaryThrottle(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.summaryEvery = d
		}
	}
}

// WithHeartbeat makes ServeHTTP write a comment line every d so idle
// proxies keep the connection open. Zero disables it.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// WithClientBuffer sets how many frames may queue per client before new
// frames are dropped for it.
func WithClientBuffer(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.clientBuf = n
		}
	}
}

// Broker fans build events out to subscribed clients.
//
// The client set, the last build frame and the summary throttle clock are
// owned by the loop goroutine started in NewBroker.
type Broker struct {
	summaryEvery time.Duration
	heartbeat    time.Duration
	clientBuf    int

	join   chan chan []byte
	leave  chan chan []byte
	events chan Event
	builds chan BuildEvent
	count  chan chan int

	quit    chan struct{}
	done    chan struct{}
	stopped atomic.Bool
}

// NewBroker starts a broker. Call Close to stop it.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		summaryEvery: 2 * time.Second,
		heartbeat:    30 * time.Second,
		clientBuf:    64,
		join:         make(chan chan []byte),
		leave:        make(chan chan []byte),
		events:       make(chan Event),
		builds:       make(chan BuildEvent),
		count:        make(chan chan int),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

// frame renders one SSE message with a fresh id.
func frame(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("id: ")
	buf.WriteString(uuid.NewString())
	buf.WriteString("\nevent: ")
	buf.WriteString(ev.Type)
	buf.WriteString("\ndata: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

func (b *Broker) loop() {
	defer close(b.done)

	clients := make(map[chan []byte]struct{})
	var (
		lastBuild   []byte
		lastSummary time.Time
	)

	send := func(ev Event) []byte {
		msg, err := frame(ev)
		if err != nil {
			return nil
		}
		for ch := range clients {
			select {
			case ch <- msg:
			default:
				// slow client, drop
			}
		}
		return msg
	}

	for {
		select {
		case <-b.quit:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.join:
			clients[ch] = struct{}{}
			if lastBuild != nil {
				ch <- lastBuild
			}

		case ch := <-b.leave:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case ev := <-b.events:
			send(ev)

		case ev := <-b.builds:
			if ev.Error != "" {
				if msg := send(Event{Type: TypeBuildFailed, Data: ev}); msg != nil {
					lastBuild = msg
				}
				continue
			}
			if msg := send(Event{Type: TypeBuildCompleted, Data: ev}); msg != nil {
				lastBuild = msg
			}
			if now := time.Now(); now.Sub(lastSummary) >= b.summaryEvery {
				lastSummary = now
				send(Event{Type: TypeSummaryUpdated, Data: struct{}{}})
			}

		case reply := <-b.count:
			reply <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.stopped.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe registers a client. The most recent build frame, if any, is
// queued on the returned channel straight away.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, b.clientBuf)
	if b.stopped.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
	case <-b.done:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.stopped.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.done:
	}
}

// ClientCount reports the number of subscribed clients.
func (b *Broker) ClientCount() int {
	if b.stopped.Load() {
		return 0
	}
	reply := make(chan int, 1)
	select {
	case b.count <- reply:
	case <-b.done:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-b.done:
		return 0
	}
}

// Publish sends an arbitrary event to every client.
func (b *Broker) Publish(ev Event) {
	if b.stopped.Load() {
		return
	}
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

// PublishBuild announces a build as build.completed, followed by a throttled
// summary.updated, or as build.failed when ev.Error is set.
func (b *Broker) PublishBuild(ev BuildEvent) {
	if b.stopped.Load() {
		return
	}
	select {
	case b.builds <- ev:
	case <-b.done:
	}
}

// ServeHTTP streams events to one client until it disconnects or the
// broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": keepalive\n\n"))
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
