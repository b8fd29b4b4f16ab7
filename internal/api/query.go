package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cvlex/internal/prompts"
	"cvlex/internal/util"
)

const maxJSONBody = 1 << 20

// decodeText reads the JSON body and returns the named string field. Other
// fields are ignored. Missing, null, non-string and blank values are rejected
// with invalidMsg.
func decodeText(w http.ResponseWriter, r *http.Request, field, invalidMsg string) (string, error) {
	var body map[string]json.RawMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return "", invalidInput(invalidMsg, fmt.Errorf("empty body"))
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return "", invalidInput(invalidMsg, err)
		}
		return "", invalidInput(msgBadJSON, err)
	}
	raw, ok := body[field]
	if !ok {
		return "", invalidInput(invalidMsg, fmt.Errorf("%s is required", field))
	}
	var v *string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", invalidInput(invalidMsg, fmt.Errorf("%s: %w", field, err))
	}
	if v == nil || strings.TrimSpace(*v) == "" {
		return "", invalidInput(invalidMsg, fmt.Errorf("%s is required", field))
	}
	return *v, nil
}

func (s *Server) handleLegalQuery(w http.ResponseWriter, r *http.Request) {
	question, err := decodeText(w, r, "question", msgBadQuestion)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	snap := s.knowledge.Current()
	if !snap.Available() {
		s.writeErr(w, r, fmt.Errorf("legal query: %w", util.ErrKnowledgeUnavailable))
		return
	}
	answer, err := s.complete(r.Context(), prompts.OpLegalGuidance, prompts.LegalGuidance(question, snap.Text()))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) handleTestQuery(w http.ResponseWriter, r *http.Request) {
	question, err := decodeText(w, r, "question", msgBadQuestion)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	answer, err := s.complete(r.Context(), prompts.OpPromptRefinement, prompts.PromptRefinement(question))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}
