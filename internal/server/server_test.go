package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docqa-assistant/server/internal/assistant/extract"
	"github.com/docqa-assistant/server/internal/assistant/generation"
	"github.com/docqa-assistant/server/internal/assistant/model"
	"github.com/docqa-assistant/server/internal/assistant/repo"
	"github.com/docqa-assistant/server/internal/assistant/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// textExtractor treats the uploaded bytes as the extracted text.
type textExtractor struct{}

func (textExtractor) Extract(_ context.Context, filename string, r io.Reader) (*extract.Result, error) {
	kind, err := extract.KindForFilename(filename)
	if err != nil {
		return nil, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &extract.Result{Text: string(b), Kind: kind, Units: 1}, nil
}

// ollamaStub answers /api/generate; it fails while down is set.
type ollamaStub struct {
	down    atomic.Bool
	answer  atomic.Value
	prompts chan string
}

func newOllamaStub(t *testing.T) (*ollamaStub, string) {
	t.Helper()
	stub := &ollamaStub{prompts: make(chan string, 16)}
	stub.answer.Store("Revenue was 1200.")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if stub.down.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"llama runner process has terminated"}`))
			return
		}
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		stub.prompts <- req.Prompt
		_ = json.NewEncoder(w).Encode(map[string]any{"response": stub.answer.Load().(string), "done": true})
	}))
	t.Cleanup(srv.Close)
	return stub, srv.URL + "/api/generate"
}

type testApp struct {
	router *gin.Engine
	ollama *ollamaStub
	cookie *http.Cookie
}

func newTestApp(t *testing.T, upload model.UploadConfig) *testApp {
	t.Helper()
	stub, endpoint := newOllamaStub(t)
	gen := generation.NewClient(model.GenerationConfig{URL: endpoint, Model: "llama2"})
	ctl, err := session.NewController(repo.NewMemorySessionRepository(time.Hour), textExtractor{}, gen, session.Config{Model: "llama2"})
	require.NoError(t, err)

	router, err := NewRouter(Deps{
		Assistant: ctl,
		Session:   model.SessionConfig{CookieName: "docqa_session"},
		Upload:    upload,
		Model:     "llama2",
	})
	require.NoError(t, err)
	return &testApp{router: router, ollama: stub}
}

// do sends req with the current session cookie and remembers any new one.
func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == "docqa_session" {
			if c.MaxAge < 0 {
				a.cookie = nil
			} else {
				a.cookie = c
			}
		}
	}
	return w
}

func multipartFile(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func formPost(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonPost(path string, payload any) *http.Request {
	b, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (a *testApp) session(t *testing.T) sessionDTO {
	t.Helper()
	w := a.do(httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var dto sessionDTO
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &dto))
	return dto
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t, model.UploadConfig{})
	w := app.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSessionCookie_IssuedOnceAndReplacedWhenInvalid(t *testing.T) {
	app := newTestApp(t, model.UploadConfig{})

	w := app.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, app.cookie)
	assert.True(t, app.cookie.HttpOnly)
	first := app.cookie.Value
	assert.True(t, validSessionID(first))

	w = app.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, w.Result().Cookies())
	assert.Equal(t, first, app.cookie.Value)

	app.cookie = &http.Cookie{Name: "docqa_session", Value: "../../etc/passwd"}
	app.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEqual(t, "../../etc/passwd", app.cookie.Value)
	assert.True(t, validSessionID(app.cookie.Value))
}

func TestAPI_AskWithoutDocumentIsRejected(t *testing.T) {
	app := newTestApp(t, model.UploadConfig{})

	w := app.do(jsonPost("/api/v1/messages", map[string]string{"question": "What was revenue?"}))
	assert.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w)
	assert.Equal(t, "no_document", env.Detail)
	assert.Equal(t, "Please upload a financial document first.", env.Message)

	dto := app.session(t)
	assert.False(t, dto.Ready)
	assert.Empty(t, dto.Messages)
}

func TestAPI_UploadThenAsk(t *testing.T) {
	app := newTestApp(t, model.UploadConfig{})

	w := app.do(multipartFile(t, "/api/v1/document", "fy2023.pdf", "Revenue 2023: 1200"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var doc documentDTO
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &doc))
	assert.Equal(t, "fy2023.pdf", doc.Name)
	assert.Equal(t, "pdf", doc.Kind)
	assert.Equal(t, len("Revenue 2023: 1200"), doc.Chars)
	assert.Empty(t, doc.Content)

	w = app.do(jsonPost("/api/v1/messages", map[string]string{"question": "What was revenue?"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var turn turnDTO
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &turn))
	assert.Equal(t, []messageDTO{
		{Role: "user", Content: "What was revenue?"},
		{Role: "assistant", Content: "Revenue was 1200."},
	}, turn.Messages)

	prompt := <-app.ollama.prompts
	assert.Contains(t, prompt, "Revenue 2023: 1200")
	assert.Contains(t, prompt, "User Question: What was revenue?")

	dto := app.session(t)
	assert.True(t, dto.Ready)
	require.NotNil(t, dto.Document)
	assert.Equal(t, "Revenue 2023: 1200", dto.Document.Content)
	assert.Len(t, dto.Messages, 2)

	w = app.do(httptest.NewRequest(http.MethodDelete, "/api/v1/messages", nil))
	require.Equal(t, http.StatusOK, w.Code)
	dto = app.session(t)
	assert.True(t, dto.Ready)
	assert.Empty(t, dto.Messages)
}

func TestAPI_UploadValidation(t *testing.T) {
	app := newTestApp(t, model.UploadConfig{MaxMB: 1})

	w := app.do(multipartFile(t, "/api/v1/document", "notes.txt", "hello"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode(t, w).Detail)

	w = app.do(httptest.NewRequest(http.MethodPost, "/api/v1/document", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(multipartFile(t, "/api/v1/document", "huge.pdf", strings.Repeat("x", 2<<20)))
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}, w.Code)
	assert.False(t, app.session(t).Ready)
}

func TestAPI_BlankQuestion(t *testing.T) {
	app := newTestApp(t, model.UploadConfig{})
	app.do(multipartFile(t, "/api/v1/document", "a.xlsx", "figures"))

	w := app.do(jsonPost("/api/v1/messages", map[string]string{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please enter a question.", decode(t, w).Message)

	w = app.do(jsonPost("/api/v1/messages", map[string]string{"question": "   "}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, app.session(t).Messages)
}

func TestPage_ConnectivityFailureThenRecovery(t *testing.T) {
	app := newTestApp(t, model.UploadConfig{})

	w := app.do(multipartFile(t, "/upload", "fy.pdf", "Revenue 1200"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Document processed successfully!")
	assert.Contains(t, w.Body.String(), "Uploaded Document Content")

	app.ollama.down.Store(true)
	w = app.do(formPost("/chat", url.Values{"question": {"What was revenue?"}}))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Could not connect to Ollama")
	assert.Empty(t, app.session(t).Messages)

	app.ollama.down.Store(false)
	w = app.do(formPost("/chat", url.Values{"question": {"What was revenue?"}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Revenue was 1200.")
	assert.Len(t, app.session(t).Messages, 2)
}

func TestPage_BlankDocumentWarnsButAcceptsQuestions(t *testing.T) {
	app := newTestApp(t, model.UploadConfig{})

	w := app.do(multipartFile(t, "/upload", "scan.pdf", ""))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `class="notice warning"`)
	assert.Contains(t, body, "No text could be extracted from scan.pdf.")
	assert.NotContains(t, body, "Document processed successfully!")
	assert.True(t, app.session(t).Ready)

	w = app.do(formPost("/chat", url.Values{"question": {"What was revenue?"}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Revenue was 1200.")
	assert.Len(t, app.session(t).Messages, 2)
}

func TestPage_WarnsWithoutDocument(t *testing.T) {
	app := newTestApp(t, model.UploadConfig{})

	w := app.do(formPost("/chat", url.Values{"question": {"Anything?"}}))
	assert.Equal(t, http.StatusConflict, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `class="notice warning"`)
	assert.Contains(t, body, "Please upload a financial document first.")
	assert.NotContains(t, body, "Anything?")
}

func TestPage_EscapesModelOutput(t *testing.T) {
	app := newTestApp(t, model.UploadConfig{})
	app.ollama.answer.Store(`<script>alert("x")</script>`)

	app.do(multipartFile(t, "/upload", "fy.pdf", "Revenue 1200"))
	w := app.do(formPost("/chat", url.Values{"question": {"q"}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `<script>alert`)
	assert.Contains(t, w.Body.String(), "&lt;script&gt;")
}

func TestPage_Reset(t *testing.T) {
	app := newTestApp(t, model.UploadConfig{})
	app.do(multipartFile(t, "/upload", "fy.pdf", "Revenue 1200"))
	app.do(formPost("/chat", url.Values{"question": {"q"}}))
	require.Len(t, app.session(t).Messages, 2)

	w := app.do(formPost("/reset", url.Values{}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, app.session(t).Messages)
	assert.True(t, app.session(t).Ready)
}

func TestAPI_EndSession(t *testing.T) {
	app := newTestApp(t, model.UploadConfig{})
	app.do(multipartFile(t, "/api/v1/document", "fy.pdf", "Revenue 1200"))
	old := app.cookie
	require.NotNil(t, old)

	w := app.do(httptest.NewRequest(http.MethodDelete, "/api/v1/session", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, app.cookie)

	// a stale cookie now points at an empty session
	app.cookie = old
	assert.False(t, app.session(t).Ready)
}

func TestNewRouter_RequiresAssistant(t *testing.T) {
	_, err := NewRouter(Deps{})
	assert.Error(t, err)
}
