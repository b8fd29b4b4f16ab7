package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cvlex/internal/config"
	"cvlex/internal/knowledge"
	"cvlex/internal/media"
	"cvlex/internal/providers"
	"cvlex/internal/storage"
	"cvlex/internal/uploads"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// CallRecorder persists one audit row per provider call.
type CallRecorder interface {
	Insert(ctx context.Context, rec storage.LLMCallRecord) error
}

type Deps struct {
	Config    config.Config
	Log       *zap.Logger
	Uploads   *uploads.Store
	Knowledge *knowledge.Holder
	Providers *providers.Manager
	Media     media.Store
	Audit     CallRecorder // optional
}

type Server struct {
	cfg       config.Config
	log       *zap.Logger
	uploads   *uploads.Store
	knowledge *knowledge.Holder
	providers *providers.Manager
	media     media.Store
	audit     CallRecorder
}

func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:       d.Config,
		log:       log,
		uploads:   d.Uploads,
		knowledge: d.Knowledge,
		providers: d.Providers,
		media:     d.Media,
		audit:     d.Audit,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/upload-cv", s.handleUploadCV)
	r.Post("/upload-cv2", s.handleUploadCVWithMission)
	r.Post("/legal-query", s.handleLegalQuery)
	r.Post("/test-query", s.handleTestQuery)
	r.Post("/generate-audio", s.handleGenerateAudio)
	r.Post("/generate-image", s.handleGenerateImage)
	r.Get("/*", s.staticHandler().ServeHTTP)

	return s.withCORS(r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"knowledge": s.knowledge.Current().Available(),
	})
}

// staticHandler serves files under the static root. Directories without an
// index.html answer 404 instead of a listing.
func (s *Server) staticHandler() http.Handler {
	return http.FileServer(noListingFS{http.Dir(s.cfg.StaticDir)})
}

type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		idx, err := n.fs.Open(filepath.ToSlash(filepath.Join(name, "index.html")))
		if err != nil {
			_ = f.Close()
			return nil, os.ErrNotExist
		}
		_ = idx.Close()
	}
	return f, nil
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	methods := strings.Join(s.cfg.CORSMethods, ",")
	headers := strings.Join(s.cfg.CORSHeaders, ",")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", headers)
			w.Header().Set("Access-Control-Allow-Methods", methods)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.cfg.CORSOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr logs the full cause and answers with the client-safe message.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Int("status", apiErr.Status),
		zap.String("kind", apiErr.Kind.String()),
		zap.Error(err),
	}
	var pe *providers.ProviderError
	if errors.As(err, &pe) {
		fields = append(fields, zap.String("provider", pe.Provider), zap.String("error_type", string(pe.Kind)))
	}
	if apiErr.Status >= 500 {
		s.log.Error("request failed", fields...)
	} else {
		s.log.Warn("request rejected", fields...)
	}
	writeJSON(w, apiErr.Status, map[string]string{"error": apiErr.Message})
}
