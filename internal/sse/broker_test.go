package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return ""
}

func drain(ch <-chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func TestClientCount(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d, want 0", n)
	}
	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after unsubscribe, want 0", n)
	}
}

func TestPublish(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "owner.flagged", Data: map[string]string{"owner": "lab"}})

	msg := recv(t, ch)
	if !strings.Contains(msg, "event: owner.flagged\n") || !strings.Contains(msg, `data: {"owner":"lab"}`) {
		t.Errorf("frame = %q", msg)
	}
	if !strings.HasSuffix(msg, "\n\n") {
		t.Errorf("frame not terminated: %q", msg)
	}
}

func TestPublishBuild_SummaryThrottled(t *testing.T) {
	b := NewBroker(WithSummaryThrottle(time.Hour))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishBuild(BuildEvent{Plasmids: 6, ErrorRecords: 2})
	b.PublishBuild(BuildEvent{Plasmids: 7, ErrorRecords: 2})

	var builds, summaries int
	for _, msg := range drain(ch) {
		switch {
		case strings.Contains(msg, "event: "+TypeBuildCompleted):
			builds++
		case strings.Contains(msg, "event: "+TypeSummaryUpdated):
			summaries++
		}
	}
	if builds != 2 || summaries != 1 {
		t.Errorf("builds = %d, summaries = %d, want 2 and 1", builds, summaries)
	}
}

func TestPublishBuild_Failure(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishBuild(BuildEvent{Error: "quartzy: login failed"})

	msgs := drain(ch)
	if len(msgs) != 1 {
		t.Fatalf("got %d frames, want 1: %q", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "event: "+TypeBuildFailed) || !strings.Contains(msgs[0], "login failed") {
		t.Errorf("frame = %q", msgs[0])
	}
}

func TestSubscribe_ReplaysLastBuild(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	b.PublishBuild(BuildEvent{Plasmids: 5})
	b.PublishBuild(BuildEvent{Plasmids: 6})

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	msg := recv(t, ch)
	if !strings.Contains(msg, "event: "+TypeBuildCompleted) || !strings.Contains(msg, `"plasmids":6`) {
		t.Errorf("replayed frame = %q", msg)
	}
	if rest := drain(ch); len(rest) != 0 {
		t.Errorf("unexpected extra frames %q", rest)
	}
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker(WithClientBuffer(4))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < 20; i++ {
		b.Publish(Event{Type: "tick", Data: i})
	}
	// The loop must still answer once the client's buffer is full.
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d", n)
	}
	if got := len(drain(ch)); got != 4 {
		t.Errorf("delivered %d frames, want 4", got)
	}
}

func TestClose(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()

	b.Close()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel should be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients = %d after close", n)
	}
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscribe after close should return a closed channel")
	}
	b.Publish(Event{Type: "x"})
	b.PublishBuild(BuildEvent{Plasmids: 1})
}

func TestFrameIDsAreUnique(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "a", Data: 1})
	b.Publish(Event{Type: "b", Data: 2})

	seen := make(map[string]bool)
	for i := 0; i < 2; i++ {
		line, _, _ := strings.Cut(recv(t, ch), "\n")
		if !strings.HasPrefix(line, "id: ") || len(line) != len("id: ")+36 {
			t.Fatalf("bad id line %q", line)
		}
		seen[line] = true
	}
	if len(seen) != 2 {
		t.Errorf("ids not unique: %v", seen)
	}
}

func TestServeHTTP(t *testing.T) {
	b := NewBroker(WithHeartbeat(20 * time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.PublishBuild(BuildEvent{Plasmids: 6})
	time.Sleep(80 * time.Millisecond)
	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: "+TypeBuildCompleted) {
		t.Errorf("body missing build event: %q", body)
	}
	if !strings.Contains(body, ": keepalive\n\n") {
		t.Errorf("body missing heartbeat: %q", body)
	}

	deadline = time.Now().Add(time.Second)
	for b.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
