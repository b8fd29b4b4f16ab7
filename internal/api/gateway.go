package api

import (
	"context"
	"errors"
	"time"

	"cvlex/internal/providers"
	"cvlex/internal/storage"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// complete runs one completion through the configured gateway and records
// the call when an audit sink is wired.
func (s *Server) complete(ctx context.Context, op string, msgs []providers.Message) (string, error) {
	ref := s.providers.ChatRef()
	start := time.Now()
	resp, info, err := s.providers.Chat().Complete(ctx, providers.CompletionRequest{
		Operation: op,
		Model:     s.cfg.ChatModel,
		Messages:  msgs,
	})
	if info.Name == "" {
		info.Name = ref.Name
	}
	if info.Model == "" {
		info.Model = s.cfg.ChatModel
	}
	if err != nil {
		err = providers.Wrap(op, info.Name, err)
	}
	s.recordCall(ctx, op, info, start, err)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (s *Server) recordCall(ctx context.Context, op string, info providers.ProviderInfo, start time.Time, callErr error) {
	latency := time.Since(start)
	reqID := middleware.GetReqID(ctx)
	s.log.Info("provider call",
		zap.String("request_id", reqID),
		zap.String("operation", op),
		zap.String("provider", info.Name),
		zap.String("model", info.Model),
		zap.Duration("latency", latency),
		zap.Bool("ok", callErr == nil),
	)
	if s.audit == nil {
		return
	}
	rec := storage.LLMCallRecord{
		Operation:    op,
		ProviderName: info.Name,
		Model:        info.Model,
		RequestID:    reqID,
		Status:       storage.StatusOK,
		LatencyMS:    latency.Milliseconds(),
	}
	if callErr != nil {
		rec.Status = storage.StatusError
		rec.ErrorType = string(providers.ClassifyError(callErr))
		var pe *providers.ProviderError
		if errors.As(callErr, &pe) {
			rec.ErrorType = string(pe.Kind)
		}
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.audit.Insert(auditCtx, rec); err != nil {
		s.log.Warn("audit insert failed", zap.String("request_id", reqID), zap.Error(err))
	}
}
