package api

import (
	"errors"
	"net/http"

	"cvlex/internal/extract"
	"cvlex/internal/prompts"
	"cvlex/internal/uploads"
	"cvlex/internal/util"

	"github.com/go-chi/chi/v5/middleware"
)

const multipartMemory = 8 << 20

func (s *Server) handleUploadCV(w http.ResponseWriter, r *http.Request) {
	s.analyzeCV(w, r, false)
}

func (s *Server) handleUploadCVWithMission(w http.ResponseWriter, r *http.Request) {
	s.analyzeCV(w, r, true)
}

// analyzeCV stages the uploaded documents, extracts their text and asks the
// completion gateway for the four-section analysis. Staged files are removed
// before the handler returns, whatever the outcome.
func (s *Server) analyzeCV(w http.ResponseWriter, r *http.Request, withMission bool) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			s.writeErr(w, r, invalidInput(msgNoFile, err))
			return
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeErr(w, r, err)
			return
		}
		s.writeErr(w, r, invalidInput(msgBadMultipart, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	batch := s.uploads.NewBatch(middleware.GetReqID(ctx))
	defer batch.Cleanup()

	cvDoc, err := batch.Stage(r.MultipartForm, uploads.FieldCV)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	cvText, err := extract.Extract(ctx, cvDoc.Path, cvDoc.MIMEHint)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	jobPosition := r.FormValue("jobPosition")
	op := prompts.OpCVAnalysis
	msgs := prompts.CVAnalysis(cvText, jobPosition)

	if withMission {
		missionDoc, ok, err := batch.StageOptional(r.MultipartForm, uploads.FieldMission)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		if ok {
			missionText, err := extract.Extract(ctx, missionDoc.Path, missionDoc.MIMEHint)
			if err != nil {
				if errors.Is(err, util.ErrNoExtractableText) {
					err = invalidInput(msgUnreadableMission, err)
				}
				s.writeErr(w, r, err)
				return
			}
			op = prompts.OpCVAnalysisMission
			msgs = prompts.CVAnalysisWithMission(cvText, jobPosition, missionText)
		}
	}

	analysis, err := s.complete(ctx, op, msgs)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Analyse réussie",
		"analysis": analysis,
	})
}
