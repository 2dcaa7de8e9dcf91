package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cornerknock/internal/gesture"
	"cornerknock/internal/ipc"
	"cornerknock/internal/store"
)

// Handler dispatches IPC requests to the service. Reload is invoked for
// explicit reload requests and re-reads the config file; Subscribers reports
// the current subscriber count for status responses.
type Handler struct {
	service     *Service
	reload      func() error
	subscribers func() int
}

// NewHandler builds the IPC handler for a service.
func NewHandler(s *Service, reload func() error, subscribers func() int) *Handler {
	if reload == nil {
		reload = func() error { return nil }
	}
	if subscribers == nil {
		subscribers = func() int { return 0 }
	}
	return &Handler{service: s, reload: reload, subscribers: subscribers}
}

// HandleMessage implements ipc.Handler.
func (h *Handler) HandleMessage(_ context.Context, msg *ipc.Message) (*ipc.Message, error) {
	id := msg.Header.RequestID

	switch msg.Header.Type {
	case ipc.MsgStatus:
		return ipc.NewResponse(ipc.MsgStatusResp, id, h.service.Status(h.subscribers()))

	case ipc.MsgEnable:
		var req ipc.EnableRequest
		if err := ipc.Decode(msg.Payload, &req); err != nil {
			return ipc.NewErrorMessage(id, ipc.ErrInvalidRequest, "invalid enable request"), nil
		}
		h.service.SetEnabled(req.Enabled)
		return ipc.NewResponse(ipc.MsgEnableResp, id, &ipc.EnableResponse{Enabled: h.service.Enabled()})

	case ipc.MsgInject:
		var req ipc.InjectRequest
		if err := ipc.Decode(msg.Payload, &req); err != nil {
			return ipc.NewErrorMessage(id, ipc.ErrInvalidRequest, "invalid inject request"), nil
		}
		kind, err := parsePointerKind(req.Kind)
		if err != nil {
			return ipc.NewErrorMessage(id, ipc.ErrInvalidRequest, err.Error()), nil
		}
		consumed := h.service.HandlePointerEvent(gesture.PointerEvent{
			Kind: kind,
			X:    req.X,
			Y:    req.Y,
			Time: time.Now(),
		}, store.SourceInject)
		snap := h.service.Snapshot()
		return ipc.NewResponse(ipc.MsgInjectResp, id, &ipc.InjectResponse{
			Consumed:  consumed,
			Candidate: snap.Candidate,
		})

	case ipc.MsgReloadConfig:
		resp := &ipc.ReloadResponse{Success: true}
		if err := h.reload(); err != nil {
			resp.Success = false
			resp.Error = err.Error()
		}
		return ipc.NewResponse(ipc.MsgReloadResp, id, resp)

	case ipc.MsgExport:
		if h.service.store == nil {
			return ipc.NewErrorMessage(id, ipc.ErrUnavailable, "audit store disabled"), nil
		}
		report, err := h.service.store.ExportReport()
		if err != nil {
			return ipc.NewErrorMessage(id, ipc.ErrInternalError, err.Error()), nil
		}
		return ipc.NewResponse(ipc.MsgExportResp, id, &ipc.ExportResponse{Report: report})

	case ipc.MsgVerify:
		if h.service.store == nil {
			return ipc.NewErrorMessage(id, ipc.ErrUnavailable, "audit store disabled"), nil
		}
		resp := &ipc.VerifyResponse{Valid: true}
		if err := h.service.store.VerifyChain(); err != nil {
			resp.Valid = false
			resp.Error = err.Error()
		}
		if n, err := h.service.store.Count(); err == nil {
			resp.Records = n
		}
		return ipc.NewResponse(ipc.MsgVerifyResp, id, resp)

	default:
		return ipc.NewErrorMessage(id, ipc.ErrInvalidRequest,
			fmt.Sprintf("unknown message type %#x", msg.Header.Type)), nil
	}
}

func parsePointerKind(kind string) (gesture.PointerKind, error) {
	switch strings.ToLower(kind) {
	case "down":
		return gesture.PointerDown, nil
	case "move":
		return gesture.PointerMove, nil
	case "up":
		return gesture.PointerUp, nil
	case "cancel":
		return gesture.PointerCancel, nil
	default:
		return 0, fmt.Errorf("unknown pointer kind %q", kind)
	}
}

// Snapshot exposes the recognizer state for handlers and tests.
func (s *Service) Snapshot() gesture.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recognizer.Snapshot()
}
