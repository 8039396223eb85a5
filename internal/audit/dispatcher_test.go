package audit

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *collectSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDelivers(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16, DropIfFull: true}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	d.Close()

	if got := sink.count(); got != 5 {
		t.Fatalf("delivered = %d, want 5", got)
	}
	if d.Dropped() != 0 {
		t.Fatalf("dropped = %d, want 0", d.Dropped())
	}
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &collectSink{})
	if d != nil {
		t.Fatal("disabled config must return a nil dispatcher")
	}

	// All methods are nil-safe.
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, Event) {
	<-s.release
}

func TestDispatcherDropsUnderBackpressure(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event occupies the worker, one fills the buffer; the rest drop.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "refresh_success"})
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops under backpressure")
	}

	close(sink.release)
	d.Close()
}

func TestDispatcherCloseDrains(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64, DropIfFull: false}, sink)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), Event{EventType: "logout_credential"})
	}
	d.Close()

	if got := sink.count(); got != 20 {
		t.Fatalf("delivered after close = %d, want 20", got)
	}

	// Emits after close are silently discarded.
	d.Emit(context.Background(), Event{})
	if got := sink.count(); got != 20 {
		t.Fatalf("delivered = %d after post-close emit, want 20", got)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		EventType: "refresh_reuse_detected",
		AccountID: "acct-1",
		Success:   false,
		Error:     "refresh_reuse",
	})

	line := buf.String()
	if !strings.HasSuffix(line, "\n") {
		t.Fatal("expected newline-terminated output")
	}
	for _, want := range []string{`"event_type":"refresh_reuse_detected"`, `"account_id":"acct-1"`, `"error":"refresh_reuse"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("output missing %s: %s", want, line)
		}
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(4)
	sink.Emit(context.Background(), Event{EventType: "login_failure"})

	select {
	case event := <-sink.Events():
		if event.EventType != "login_failure" {
			t.Fatalf("event type = %s", event.EventType)
		}
	default:
		t.Fatal("expected buffered event")
	}
}
