package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cvlex/internal/media"
	"cvlex/internal/prompts"
	"cvlex/internal/providers"

	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) handleGenerateAudio(w http.ResponseWriter, r *http.Request) {
	question, err := decodeText(w, r, "question", msgBadQuestion)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	ctx := r.Context()
	art, err := s.synthesize(ctx, prompts.OpSpeech, "audio", func(ctx context.Context) (providers.Media, providers.ProviderInfo, error) {
		return s.providers.Speech().Speech(ctx, providers.SpeechRequest{
			Input: prompts.MediaPrompt(question),
			Voice: s.cfg.SpeechVoice,
			Model: s.cfg.SpeechModel,
		})
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Audio généré avec succès",
		"filePath": art.URL,
	})
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	prompt, err := decodeText(w, r, "prompt", msgBadPrompt)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	ctx := r.Context()
	art, err := s.synthesize(ctx, prompts.OpImage, "image", func(ctx context.Context) (providers.Media, providers.ProviderInfo, error) {
		return s.providers.Image().Image(ctx, providers.ImageRequest{
			Prompt: prompts.MediaPrompt(prompt),
			Size:   s.cfg.ImageSize,
			Model:  s.cfg.ImageModel,
		})
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Image générée avec succès",
		"imageUrl": art.URL,
	})
}

type synthFunc func(ctx context.Context) (providers.Media, providers.ProviderInfo, error)

// synthesize runs one media provider call and stores the result under a
// name derived from the request ID.
func (s *Server) synthesize(ctx context.Context, op, kind string, call synthFunc) (media.Artifact, error) {
	start := time.Now()
	m, info, err := call(ctx)
	if err != nil {
		err = providers.Wrap(op, info.Name, err)
	}
	s.recordCall(ctx, op, info, start, err)
	if err != nil {
		return media.Artifact{}, err
	}
	if len(m.Data) == 0 {
		return media.Artifact{}, providers.Wrap(op, info.Name, fmt.Errorf("empty %s payload", kind))
	}
	art, err := s.media.Put(ctx, media.Key(kind, middleware.GetReqID(ctx), m.Ext), m)
	if err != nil {
		return media.Artifact{}, fmt.Errorf("store %s: %w", kind, err)
	}
	return art, nil
}
