package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"cvlex/internal/config"
	"cvlex/internal/extract/extracttest"
	"cvlex/internal/knowledge"
	"cvlex/internal/media"
	"cvlex/internal/prompts"
	"cvlex/internal/providers"
	"cvlex/internal/storage"
	"cvlex/internal/uploads"

	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	mu   sync.Mutex
	reqs []providers.CompletionRequest
	text string
	err  error
}

func (f *fakeChat) Complete(_ context.Context, req providers.CompletionRequest) (providers.CompletionResponse, providers.ProviderInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	info := providers.ProviderInfo{Name: "fake", Model: req.Model}
	if f.err != nil {
		return providers.CompletionResponse{}, info, f.err
	}
	return providers.CompletionResponse{Text: f.text}, info, nil
}

func (f *fakeChat) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *fakeChat) last() providers.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

type fakeAudit struct {
	mu   sync.Mutex
	recs []storage.LLMCallRecord
}

func (f *fakeAudit) Insert(_ context.Context, rec storage.LLMCallRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

type testEnv struct {
	handler   http.Handler
	chat      *fakeChat
	audit     *fakeAudit
	uploadDir string
	staticDir string
}

const sectionedReply = "**Compétences Analysées**\n- Go\n\n**Résumé du profil**\nDev.\n\n" +
	"**Adéquation au poste demandé**\nOui.\n\n**Compétences manquantes**\n- Aucune"

func newTestEnv(t *testing.T, knowledgeText string, chat providers.ChatProvider) *testEnv {
	t.Helper()
	uploadDir := t.TempDir()
	staticDir := t.TempDir()
	cfg := config.Config{
		StaticDir:      staticDir,
		UploadDir:      uploadDir,
		MaxUploadBytes: 1 << 20,
		ChatModel:      "gpt-3.5-turbo",
		SpeechModel:    "tts-1",
		SpeechVoice:    "alloy",
		ImageModel:     "dall-e-3",
		ImageSize:      "1024x1024",
		CORSOrigins:    []string{"https://quentinrls.github.io"},
		CORSMethods:    []string{"GET", "POST", "OPTIONS"},
		CORSHeaders:    []string{"Content-Type"},
	}
	store, err := uploads.NewStore(uploadDir, nil)
	require.NoError(t, err)
	mediaStore, err := media.NewLocalStore(staticDir, "generated", nil)
	require.NoError(t, err)

	env := &testEnv{audit: &fakeAudit{}, uploadDir: uploadDir, staticDir: staticDir}
	if chat == nil {
		env.chat = &fakeChat{text: sectionedReply}
		chat = env.chat
	}
	mock := providers.NewMockProvider()
	srv := NewServer(Deps{
		Config:    cfg,
		Uploads:   store,
		Knowledge: knowledge.NewStaticHolder(knowledge.NewSnapshot(knowledgeText)),
		Providers: providers.NewStaticManager(chat, mock, mock),
		Media:     mediaStore,
		Audit:     env.audit,
	})
	env.handler = srv.Routes()
	return env
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, files []formFile, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	out := map[string]string{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (e *testEnv) postJSON(t *testing.T, path, body string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req)
}

func (e *testEnv) requireNoStagedFiles(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(e.uploadDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestUploadCVReturnsSectionedAnalysis(t *testing.T) {
	env := newTestEnv(t, "", nil)
	body, ct := multipartBody(t,
		[]formFile{{field: "cvFile", name: "cv.txt", data: []byte("Développeur Go, 5 ans")}},
		map[string]string{"jobPosition": "Backend"})
	req := httptest.NewRequest(http.MethodPost, "/upload-cv", body)
	req.Header.Set("Content-Type", ct)

	rec, out := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Analyse réussie", out["message"])
	for _, h := range prompts.CVSections {
		require.Contains(t, out["analysis"], h)
	}

	sent := env.chat.last()
	require.Equal(t, prompts.OpCVAnalysis, sent.Operation)
	require.Equal(t, "gpt-3.5-turbo", sent.Model)
	require.Equal(t, providers.RoleSystem, sent.Messages[0].Role)
	require.Contains(t, sent.Messages[1].Content, "Développeur Go")
	require.Contains(t, sent.Messages[1].Content, "Backend")
	env.requireNoStagedFiles(t)
}

func TestUploadCVExtractsPDF(t *testing.T) {
	env := newTestEnv(t, "", nil)
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="cvFile"; filename="cv.pdf"`)
	h.Set("Content-Type", "application/pdf")
	fw, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = fw.Write(extracttest.OnePagePDF("Developpeur Go senior"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("jobPosition", "Backend"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-cv", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec, out := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, out["analysis"])
	require.Contains(t, env.chat.last().Messages[1].Content, "Developpeur Go senior")
	env.requireNoStagedFiles(t)
}

func TestUploadCVWithoutFile(t *testing.T) {
	env := newTestEnv(t, "", nil)
	body, ct := multipartBody(t, nil, map[string]string{"jobPosition": "Backend"})
	req := httptest.NewRequest(http.MethodPost, "/upload-cv", body)
	req.Header.Set("Content-Type", ct)

	rec, out := env.do(t, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, msgNoFile, out["error"])
	require.Zero(t, env.chat.calls())
}

func TestUploadCVNotMultipart(t *testing.T) {
	env := newTestEnv(t, "", nil)
	rec, out := env.postJSON(t, "/upload-cv", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, msgNoFile, out["error"])
	require.Zero(t, env.chat.calls())
}

func TestUploadCVUnreadableDocument(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty.pdf":   {},
		"corrupt.pdf": []byte("this is not a pdf"),
		"blank.txt":   []byte("  \n\t "),
	} {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, "", nil)
			body, ct := multipartBody(t, []formFile{{field: "cvFile", name: name, data: data}}, nil)
			req := httptest.NewRequest(http.MethodPost, "/upload-cv", body)
			req.Header.Set("Content-Type", ct)

			rec, out := env.do(t, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, msgUnreadable, out["error"])
			require.Zero(t, env.chat.calls())
			env.requireNoStagedFiles(t)
		})
	}
}

func TestUploadCVTooLarge(t *testing.T) {
	env := newTestEnv(t, "", nil)
	big := bytes.Repeat([]byte("a"), 2<<20)
	body, ct := multipartBody(t, []formFile{{field: "cvFile", name: "cv.txt", data: big}}, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload-cv", body)
	req.Header.Set("Content-Type", ct)

	rec, _ := env.do(t, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, env.chat.calls())
	env.requireNoStagedFiles(t)
}

func TestUploadCVProviderErrorHidesDetail(t *testing.T) {
	chat := &fakeChat{err: errors.New("status 401: invalid api key sk-secret")}
	env := newTestEnv(t, "", chat)
	body, ct := multipartBody(t, []formFile{{field: "cvFile", name: "cv.txt", data: []byte("CV")}}, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload-cv", body)
	req.Header.Set("Content-Type", ct)

	rec, out := env.do(t, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, msgAnalysisFailed, out["error"])
	require.NotContains(t, rec.Body.String(), "sk-secret")
	env.requireNoStagedFiles(t)

	require.Len(t, env.audit.recs, 1)
	require.Equal(t, storage.StatusError, env.audit.recs[0].Status)
	require.Equal(t, string(providers.ErrorAuth), env.audit.recs[0].ErrorType)
}

func TestUploadCV2WithMission(t *testing.T) {
	env := newTestEnv(t, "", nil)
	body, ct := multipartBody(t, []formFile{
		{field: "cvFile", name: "cv.txt", data: []byte("Data engineer")},
		{field: "missionFile", name: "mission.txt", data: []byte("Migration Kafka chez un assureur")},
	}, map[string]string{"jobPosition": "Lead data"})
	req := httptest.NewRequest(http.MethodPost, "/upload-cv2", body)
	req.Header.Set("Content-Type", ct)

	rec, out := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, out["analysis"])
	sent := env.chat.last()
	require.Equal(t, prompts.OpCVAnalysisMission, sent.Operation)
	require.Contains(t, sent.Messages[1].Content, "Migration Kafka")
	env.requireNoStagedFiles(t)
}

func TestUploadCV2WithoutMissionFallsBack(t *testing.T) {
	env := newTestEnv(t, "", nil)
	body, ct := multipartBody(t, []formFile{{field: "cvFile", name: "cv.txt", data: []byte("Data engineer")}}, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload-cv2", body)
	req.Header.Set("Content-Type", ct)

	rec, _ := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, prompts.OpCVAnalysis, env.chat.last().Operation)
}

func TestUploadCV2EmptyMission(t *testing.T) {
	env := newTestEnv(t, "", nil)
	body, ct := multipartBody(t, []formFile{
		{field: "cvFile", name: "cv.txt", data: []byte("Data engineer")},
		{field: "missionFile", name: "mission.pdf", data: nil},
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload-cv2", body)
	req.Header.Set("Content-Type", ct)

	rec, out := env.do(t, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, msgUnreadableMission, out["error"])
	require.Zero(t, env.chat.calls())
	env.requireNoStagedFiles(t)
}

func TestConcurrentUploadsAreIsolated(t *testing.T) {
	env := newTestEnv(t, "", nil)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	const n = 8
	bodies := make([]*bytes.Buffer, n)
	types := make([]string, n)
	for i := range bodies {
		bodies[i], types[i] = multipartBody(t,
			[]formFile{{field: "cvFile", name: "cv.txt", data: []byte(strings.Repeat("x", i+1))}}, nil)
	}

	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := http.Post(ts.URL+"/upload-cv", types[i], bodies[i])
			if err != nil {
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for _, c := range codes {
		require.Equal(t, http.StatusOK, c)
	}
	require.Equal(t, n, env.chat.calls())
	seen := map[string]bool{}
	for _, r := range env.chat.reqs {
		seen[r.Messages[1].Content] = true
	}
	require.Len(t, seen, n)
	env.requireNoStagedFiles(t)
}

func TestLegalQuery(t *testing.T) {
	env := newTestEnv(t, "Livre I - Chapitre 1 - Section 1 : du meurtre", nil)
	env.chat.text = "**Meurtre** #Livre I# #Chapitre 1# #Section 1#"

	rec, out := env.postJSON(t, "/legal-query", `{"question":"Qu'est-ce\nqu'un meurtre ?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, env.chat.text, out["answer"])

	sent := env.chat.last()
	require.Equal(t, prompts.OpLegalGuidance, sent.Operation)
	require.Contains(t, sent.Messages[0].Content, "du meurtre")
	require.Equal(t, "Qu'est-ce qu'un meurtre ?", sent.Messages[1].Content)

	require.Len(t, env.audit.recs, 1)
	require.Equal(t, storage.StatusOK, env.audit.recs[0].Status)
	require.Equal(t, prompts.OpLegalGuidance, env.audit.recs[0].Operation)
	require.NotEmpty(t, env.audit.recs[0].RequestID)
}

func TestLegalQueryKnowledgeUnavailable(t *testing.T) {
	env := newTestEnv(t, "   ", nil)
	rec, out := env.postJSON(t, "/legal-query", `{"question":"Vol ?"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, msgNoKnowledge, out["error"])
	require.Zero(t, env.chat.calls())
}

func TestQuestionValidation(t *testing.T) {
	cases := map[string]string{
		"number":     `{"question":123}`,
		"missing":    `{}`,
		"blank":      `{"question":"   "}`,
		"null":       `{"question":null}`,
		"empty body": ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, "connaissances", nil)
			for _, path := range []string{"/legal-query", "/test-query", "/generate-audio"} {
				rec, out := env.postJSON(t, path, body)
				require.Equal(t, http.StatusBadRequest, rec.Code, path)
				require.Equal(t, msgBadQuestion, out["error"], path)
			}
			require.Zero(t, env.chat.calls())
		})
	}
}

func TestOtherFieldsAreIgnored(t *testing.T) {
	env := newTestEnv(t, "connaissances", nil)
	rec, out := env.postJSON(t, "/legal-query", `{"question":"Vol ?","prompt":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, out["answer"])

	rec, _ = env.postJSON(t, "/generate-image", `{"prompt":"Un chat","question":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNonObjectBody(t *testing.T) {
	env := newTestEnv(t, "connaissances", nil)
	rec, out := env.postJSON(t, "/test-query", `"Vol ?"`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, msgBadQuestion, out["error"])
	require.Zero(t, env.chat.calls())
}

func TestMalformedJSON(t *testing.T) {
	env := newTestEnv(t, "connaissances", nil)
	rec, out := env.postJSON(t, "/test-query", `{"question":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, msgBadJSON, out["error"])
}

func TestTestQueryIsIdempotent(t *testing.T) {
	env := newTestEnv(t, "", providers.NewMockProvider())
	_, first := env.postJSON(t, "/test-query", `{"question":"Écris un poème"}`)
	_, second := env.postJSON(t, "/test-query", `{"question":"Écris un poème"}`)
	require.NotEmpty(t, first["answer"])
	require.Equal(t, first, second)
}

func TestTestQueryProviderError(t *testing.T) {
	env := newTestEnv(t, "", &fakeChat{err: errors.New("dial tcp: connection refused")})
	rec, out := env.postJSON(t, "/test-query", `{"question":"x"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, msgAnswerFailed, out["error"])
}

func TestGenerateAudioPerRequestFiles(t *testing.T) {
	env := newTestEnv(t, "", nil)
	rec1, out1 := env.postJSON(t, "/generate-audio", `{"question":"Bonjour"}`)
	rec2, out2 := env.postJSON(t, "/generate-audio", `{"question":"Bonjour"}`)
	require.Equal(t, http.StatusOK, rec1.Code)
	require.Equal(t, http.StatusOK, rec2.Code)
	require.True(t, strings.HasPrefix(out1["filePath"], "/generated/audio-"))
	require.True(t, strings.HasSuffix(out1["filePath"], ".mp3"))
	require.NotEqual(t, out1["filePath"], out2["filePath"])

	rec, _ := env.do(t, httptest.NewRequest(http.MethodGet, out1["filePath"], nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("ID3")))
}

func TestGenerateImage(t *testing.T) {
	env := newTestEnv(t, "", nil)
	rec, out := env.postJSON(t, "/generate-image", `{"prompt":"Un chat"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(out["imageUrl"], "/generated/image-"))
	require.True(t, strings.HasSuffix(out["imageUrl"], ".png"))
	require.FileExists(t, filepath.Join(env.staticDir, filepath.FromSlash(strings.TrimPrefix(out["imageUrl"], "/"))))

	rec, out = env.postJSON(t, "/generate-image", `{"prompt":42}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, msgBadPrompt, out["error"])
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, "", nil)

	req := httptest.NewRequest(http.MethodOptions, "/legal-query", nil)
	req.Header.Set("Origin", "https://quentinrls.github.io")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec, _ := env.do(t, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://quentinrls.github.io", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	require.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))

	req = httptest.NewRequest(http.MethodOptions, "/legal-query", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec, _ = env.do(t, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, "", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		OK        bool `json:"ok"`
		Knowledge bool `json:"knowledge"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.True(t, out.OK)
	require.False(t, out.Knowledge)
}

func TestStaticFiles(t *testing.T) {
	env := newTestEnv(t, "", nil)
	require.NoError(t, os.WriteFile(filepath.Join(env.staticDir, "index.html"), []byte("<h1>cvlex</h1>"), 0o644))

	rec, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "cvlex")

	rec, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/missing.js", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/generated/", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, httptest.NewRequest(http.MethodHead, "/index.html", nil))
	require.NotEqual(t, http.StatusMethodNotAllowed, rec.Code)
	rec, _ = env.do(t, httptest.NewRequest(http.MethodHead, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())
}
