package notify

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLogNotifierWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	n := NewLogNotifier(logger)
	err := n.Notify(Event{
		Sequence:  "TLTRBR",
		Source:    "touch",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "sequence matched") {
		t.Errorf("log output missing message: %s", out)
	}
	if !strings.Contains(out, "source=touch") {
		t.Errorf("log output missing source: %s", out)
	}
}

type stubNotifier struct {
	events []Event
	err    error
	closed bool
}

func (s *stubNotifier) Notify(ev Event) error {
	s.events = append(s.events, ev)
	return s.err
}

func (s *stubNotifier) Close() error {
	s.closed = true
	return nil
}

func TestMultiDeliversToAll(t *testing.T) {
	a := &stubNotifier{}
	b := &stubNotifier{err: errors.New("bus gone")}
	c := &stubNotifier{}

	m := NewMulti(a, b, c)
	err := m.Notify(Event{Sequence: "TLTRBR", Source: "inject", Timestamp: time.Now()})

	if err == nil {
		t.Error("Notify should surface the failing notifier's error")
	}
	for i, s := range []*stubNotifier{a, b, c} {
		if len(s.events) != 1 {
			t.Errorf("notifier %d received %d events, want 1", i, len(s.events))
		}
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed || !b.closed || !c.closed {
		t.Error("Close did not reach every notifier")
	}
}
