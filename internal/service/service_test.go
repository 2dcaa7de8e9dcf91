package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"cornerknock/internal/config"
	"cornerknock/internal/gesture"
	"cornerknock/internal/ipc"
	"cornerknock/internal/notify"
	"cornerknock/internal/store"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Gesture.Sequences = []string{"TLTRBR"}
	cfg.Gesture.CornerSize = 50
	cfg.Display.Width = 800
	cfg.Display.Height = 600
	return cfg
}

func newTestService(t *testing.T, notifier notify.Notifier) *Service {
	t.Helper()
	s, err := New(testConfig(), Options{
		Version:  "test",
		Logger:   slog.New(slog.DiscardHandler),
		Notifier: notifier,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

type captureNotifier struct {
	events []notify.Event
}

func (c *captureNotifier) Notify(ev notify.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *captureNotifier) Close() error { return nil }

func tap(t *testing.T, s *Service, x, y int, source string) {
	t.Helper()
	now := time.Now()
	s.HandlePointerEvent(gesture.PointerEvent{Kind: gesture.PointerDown, X: x, Y: y, Time: now}, source)
	s.HandlePointerEvent(gesture.PointerEvent{Kind: gesture.PointerUp, X: x, Y: y, Time: now.Add(10 * time.Millisecond)}, source)
}

// Corner points for the 800x600, corner-size-50 test geometry.
func tapSequenceTLTRBR(t *testing.T, s *Service, source string) {
	t.Helper()
	tap(t, s, 10, 10, source)   // TL
	tap(t, s, 790, 10, source)  // TR
	tap(t, s, 790, 590, source) // BR
}

func TestMatchNotifiesAndBroadcasts(t *testing.T) {
	notifier := &captureNotifier{}
	s := newTestService(t, notifier)

	var broadcasts []*ipc.MatchEvent
	s.SetBroadcast(func(ev *ipc.MatchEvent) {
		broadcasts = append(broadcasts, ev)
	})

	tapSequenceTLTRBR(t, s, store.SourceDemo)

	if len(notifier.events) != 1 {
		t.Fatalf("notifier received %d events, want 1", len(notifier.events))
	}
	ev := notifier.events[0]
	if ev.Sequence != "TLTRBR" || ev.Source != store.SourceDemo {
		t.Errorf("event = %+v", ev)
	}

	if len(broadcasts) != 1 {
		t.Fatalf("broadcast received %d events, want 1", len(broadcasts))
	}

	status := s.Status(0)
	if status.MatchCount != 1 {
		t.Errorf("match count = %d, want 1", status.MatchCount)
	}
}

func TestMatchRecordedInStore(t *testing.T) {
	dir := t.TempDir()
	secret, err := store.LoadOrCreateSecret(filepath.Join(dir, "device.secret"))
	if err != nil {
		t.Fatalf("LoadOrCreateSecret: %v", err)
	}
	key, err := store.DeriveAuditKey(secret)
	if err != nil {
		t.Fatalf("DeriveAuditKey: %v", err)
	}
	st, err := store.Open(filepath.Join(dir, "audit.db"), key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	s, err := New(testConfig(), Options{
		Version: "test",
		Logger:  slog.New(slog.DiscardHandler),
		Store:   st,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	tapSequenceTLTRBR(t, s, store.SourceInject)

	matches, err := st.Matches(0)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("store has %d matches, want 1", len(matches))
	}
	if matches[0].Sequence != "TLTRBR" || matches[0].Source != store.SourceInject {
		t.Errorf("match = %+v", matches[0])
	}
}

func TestSetEnabled(t *testing.T) {
	s := newTestService(t, nil)

	s.SetEnabled(false)
	if s.Enabled() {
		t.Fatal("service still enabled after disable")
	}
	if consumed := s.HandlePointerEvent(gesture.PointerEvent{Kind: gesture.PointerDown, X: 10, Y: 10, Time: time.Now()}, store.SourceDemo); consumed {
		t.Error("disabled recognizer consumed an event")
	}

	s.SetEnabled(true)
	if !s.Enabled() {
		t.Fatal("service not enabled after enable")
	}
}

func TestReloadRebuildsRecognizer(t *testing.T) {
	notifier := &captureNotifier{}
	s := newTestService(t, notifier)

	// Start a candidate, then reload with a different sequence set.
	tap(t, s, 10, 10, store.SourceDemo)
	if snap := s.Snapshot(); snap.Candidate != "TL" {
		t.Fatalf("candidate = %q, want TL", snap.Candidate)
	}

	cfg := testConfig()
	cfg.Gesture.Sequences = []string{"BRBRBR"}
	if err := s.Reload(cfg); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if snap := s.Snapshot(); snap.Candidate != "" {
		t.Errorf("candidate survived reload: %q", snap.Candidate)
	}

	for range 3 {
		tap(t, s, 790, 590, store.SourceDemo) // BR
	}
	if len(notifier.events) != 1 || notifier.events[0].Sequence != "BRBRBR" {
		t.Fatalf("events after reload = %+v", notifier.events)
	}
}

func TestReloadPreservesDisabledState(t *testing.T) {
	s := newTestService(t, nil)
	s.SetEnabled(false)

	if err := s.Reload(testConfig()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if s.Enabled() {
		t.Error("reload re-enabled a disabled recognizer")
	}
}

func TestReloadRejectsInvalidConfig(t *testing.T) {
	s := newTestService(t, nil)

	cfg := testConfig()
	cfg.Gesture.Sequences = []string{"XX"}
	if err := s.Reload(cfg); err == nil {
		t.Fatal("Reload accepted an invalid sequence")
	}

	// The previous recognizer must keep working.
	notifier := &captureNotifier{}
	s.notifier = notifier
	tapSequenceTLTRBR(t, s, store.SourceDemo)
	if len(notifier.events) != 1 {
		t.Errorf("recognizer broken after failed reload: %d events", len(notifier.events))
	}
}

// ============================================================================
// IPC handler
// ============================================================================

func handle(t *testing.T, h *Handler, msgType ipc.MessageType, req any) *ipc.Message {
	t.Helper()
	var payload []byte
	if req != nil {
		var err error
		if payload, err = ipc.Encode(req); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	resp, err := h.HandleMessage(context.Background(), ipc.NewMessage(msgType, 7, payload))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	return resp
}

func TestHandlerStatus(t *testing.T) {
	s := newTestService(t, nil)
	h := NewHandler(s, nil, func() int { return 2 })

	resp := handle(t, h, ipc.MsgStatus, nil)
	if resp.Header.Type != ipc.MsgStatusResp {
		t.Fatalf("response type = %#x", resp.Header.Type)
	}

	var status ipc.StatusResponse
	if err := ipc.Decode(resp.Payload, &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Enabled || status.Sequences != 1 || status.Subscribers != 2 {
		t.Errorf("status = %+v", status)
	}
}

func TestHandlerEnableDisable(t *testing.T) {
	s := newTestService(t, nil)
	h := NewHandler(s, nil, nil)

	resp := handle(t, h, ipc.MsgEnable, &ipc.EnableRequest{Enabled: false})
	var enableResp ipc.EnableResponse
	if err := ipc.Decode(resp.Payload, &enableResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if enableResp.Enabled {
		t.Error("recognizer still enabled")
	}
	if s.Enabled() {
		t.Error("service state not updated")
	}
}

func TestHandlerInjectCompletesSequence(t *testing.T) {
	notifier := &captureNotifier{}
	s := newTestService(t, notifier)
	h := NewHandler(s, nil, nil)

	points := [][2]int{{10, 10}, {790, 10}, {790, 590}}
	for _, p := range points {
		handle(t, h, ipc.MsgInject, &ipc.InjectRequest{Kind: "down", X: p[0], Y: p[1]})
		handle(t, h, ipc.MsgInject, &ipc.InjectRequest{Kind: "up", X: p[0], Y: p[1]})
	}

	if len(notifier.events) != 1 {
		t.Fatalf("injected sequence produced %d events, want 1", len(notifier.events))
	}
	if notifier.events[0].Source != store.SourceInject {
		t.Errorf("source = %s, want inject", notifier.events[0].Source)
	}
}

func TestHandlerInjectRejectsBadKind(t *testing.T) {
	s := newTestService(t, nil)
	h := NewHandler(s, nil, nil)

	resp := handle(t, h, ipc.MsgInject, &ipc.InjectRequest{Kind: "hover", X: 1, Y: 1})
	if resp.Header.Type != ipc.MsgError {
		t.Fatalf("response type = %#x, want error", resp.Header.Type)
	}
}

func TestHandlerVerifyWithoutStore(t *testing.T) {
	s := newTestService(t, nil)
	h := NewHandler(s, nil, nil)

	resp := handle(t, h, ipc.MsgVerify, nil)
	if resp.Header.Type != ipc.MsgError {
		t.Fatalf("response type = %#x, want error", resp.Header.Type)
	}
}

func TestHandlerReload(t *testing.T) {
	s := newTestService(t, nil)
	called := false
	h := NewHandler(s, func() error { called = true; return nil }, nil)

	resp := handle(t, h, ipc.MsgReloadConfig, nil)
	var reloadResp ipc.ReloadResponse
	if err := ipc.Decode(resp.Payload, &reloadResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reloadResp.Success || !called {
		t.Errorf("reload not dispatched: %+v called=%v", reloadResp, called)
	}
}
