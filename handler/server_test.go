package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"HealthIntake/model"
	"HealthIntake/questionnaire"
	"HealthIntake/repo"
	"HealthIntake/service"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu      sync.Mutex
	sent    []string
	deleted []int
	sendErr error
	delErr  error
	nextID  int
}

func (f *fakeChannel) Send(_ context.Context, text string) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, text)
	f.nextID++
	return []int{f.nextID}, nil
}

func (f *fakeChannel) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.delErr
}

type testEnv struct {
	handler http.Handler
	intake  *service.Intake
	channel *fakeChannel
	content *repo.ContentStore
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	ch := &fakeChannel{nextID: 100}
	intake := service.NewIntake(questionnaire.MustLoad(), repo.NewMemoryStore(), ch)
	content := repo.NewContentStore("")
	gate, err := NewAdminGate("secret-pass", "signing-key", 0)
	require.NoError(t, err)
	srv := NewServer(intake, content, gate, opts...)
	return &testEnv{handler: srv.Routes(), intake: intake, channel: ch, content: content}
}

func (e *testEnv) do(t *testing.T, method, target, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

const validBody = `{
	"type": "man",
	"language": "en",
	"formData": {
		"name": "Ivan",
		"age": "40",
		"operations": "no",
		"allergies": ["none"],
		"digestion": "good",
		"how_learned": "instagram"
	},
	"contactData": {"telegram": "@Ivan"},
	"markdown": "ignored"
}`

func TestSaveQuestionnaire(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodPost, "/api/save-questionnaire", validBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Questionnaire saved successfully", out["message"])
	assert.Equal(t, float64(101), out["telegramMessageId"])
	id, _ := out["id"].(string)
	require.NotEmpty(t, id)

	require.Len(t, env.channel.sent, 1)
	assert.Contains(t, env.channel.sent[0], "<b>Man Questionnaire</b>")
	assert.NotContains(t, env.channel.sent[0], "ignored")

	rec, out = env.do(t, http.MethodGet, "/api/get-questionnaire?id="+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := out["data"].(map[string]any)
	assert.Equal(t, id, data["id"])
	assert.Equal(t, "man", data["type"])
	assert.Equal(t, float64(101), data["telegramMessageId"])
	assert.Equal(t, "@Ivan", data["contactData"].(map[string]any)["telegram"])
}

func TestSaveQuestionnaireErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   string
		status int
		errMsg string
	}{
		{"missing type", `{"formData":{},"contactData":{}}`, http.StatusBadRequest, "Missing required fields"},
		{"missing form data", `{"type":"man","contactData":{}}`, http.StatusBadRequest, "Missing required fields"},
		{"missing contact", `{"type":"man","formData":{}}`, http.StatusBadRequest, "Missing required fields"},
		{"unknown type", `{"type":"alien","formData":{},"contactData":{}}`, http.StatusBadRequest, "Invalid questionnaire type"},
		{"invalid json", `{"type":`, http.StatusBadRequest, "Invalid JSON body"},
		{"invalid form", `{"type":"man","language":"en","formData":{},"contactData":{}}`, http.StatusUnprocessableEntity, "Validation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := env.do(t, http.MethodPost, "/api/save-questionnaire", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.errMsg, out["error"])
		})
	}

	_, out := env.do(t, http.MethodPost, "/api/save-questionnaire", `{"type":"man","language":"en","formData":{},"contactData":{}}`)
	errs := out["errors"].(map[string]any)
	assert.Equal(t, "This field is required", errs["name"])
	assert.Equal(t, "This field is required", errs[questionnaire.ContactField])
	assert.Empty(t, env.channel.sent)
}

func TestSaveQuestionnaireDeliveryFailure(t *testing.T) {
	env := newTestEnv(t)
	env.channel.sendErr = errors.New("telegram down")

	rec, out := env.do(t, http.MethodPost, "/api/save-questionnaire", validBody)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, false, out["success"])

	n, err := env.intake.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBodyLimit(t *testing.T) {
	env := newTestEnv(t, WithMaxBody(64))
	rec, out := env.do(t, http.MethodPost, "/api/save-questionnaire", validBody)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request body too large", out["error"])
}

func TestMethodsAndCORS(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodGet, "/api/save-questionnaire", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", out["error"])

	rec, _ = env.do(t, http.MethodOptions, "/api/save-questionnaire", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))

	rec, _ = env.do(t, http.MethodOptions, "/api/delete-questionnaire", "")
	assert.Equal(t, "DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	rec, _ = env.do(t, http.MethodOptions, "/api/get-questionnaire", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec, _ = env.do(t, http.MethodGet, "/api/save-questionnaire", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec, out = env.do(t, http.MethodGet, "/api/nothing-here", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", out["error"])
}

func submit(t *testing.T, env *testEnv, contact string) string {
	t.Helper()
	body := strings.Replace(validBody, `{"telegram": "@Ivan"}`, contact, 1)
	rec, out := env.do(t, http.MethodPost, "/api/save-questionnaire", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return out["id"].(string)
}

func TestGetAndDeleteQuestionnaire(t *testing.T) {
	env := newTestEnv(t)
	id := submit(t, env, `{"telegram": "@Ivan"}`)

	rec, out := env.do(t, http.MethodGet, "/api/get-questionnaire", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Questionnaire ID is required", out["error"])

	rec, out = env.do(t, http.MethodGet, "/api/get-questionnaire?id=missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Questionnaire not found", out["error"])

	rec, _ = env.do(t, http.MethodDelete, "/api/delete-questionnaire", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = env.do(t, http.MethodDelete, "/api/delete-questionnaire?id="+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Questionnaire deleted successfully", out["message"])
	assert.Equal(t, []int{101}, env.channel.deleted)

	rec, _ = env.do(t, http.MethodDelete, "/api/delete-questionnaire?id="+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchAndLookupByIDs(t *testing.T) {
	env := newTestEnv(t)
	first := submit(t, env, `{"telegram": "@Ivan"}`)
	second := submit(t, env, `{"phone": "+7 999 000-11-22", "telegram": "ivan"}`)
	submit(t, env, `{"instagram": "other"}`)

	rec, out := env.do(t, http.MethodPost, "/api/search-questionnaires", `{"telegram":" @IVAN "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), out["count"])
	list := out["questionnaires"].([]any)
	require.Len(t, list, 2)
	ids := []any{list[0].(map[string]any)["id"], list[1].(map[string]any)["id"]}
	assert.ElementsMatch(t, []any{first, second}, ids)
	assert.NotContains(t, list[0], "formData")

	rec, out = env.do(t, http.MethodPost, "/api/search-questionnaires", `{"telegram":"  ","phone":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "At least one contact method is required", out["error"])

	rec, out = env.do(t, http.MethodPost, "/api/get-questionnaires-by-ids", fmt.Sprintf(`{"ids":[%q,"missing",7]}`, second))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), out["count"])

	for _, body := range []string{`{}`, `{"ids":"abc"}`, `{"ids":[]}`, ``} {
		rec, out = env.do(t, http.MethodPost, "/api/get-questionnaires-by-ids", body)
		assert.Equal(t, http.StatusOK, rec.Code, body)
		assert.Equal(t, float64(0), out["count"], body)
		assert.Equal(t, []any{}, out["questionnaires"], body)
	}
}

func TestUpdateMessageID(t *testing.T) {
	env := newTestEnv(t)
	id := submit(t, env, `{"telegram": "@Ivan"}`)

	tests := []struct {
		name   string
		body   string
		status int
		errMsg string
	}{
		{"no id", `{"telegramMessageId": 5}`, http.StatusBadRequest, "Questionnaire ID is required"},
		{"numeric id", `{"id": 5, "telegramMessageId": 5}`, http.StatusBadRequest, "Questionnaire ID is required"},
		{"no message id", fmt.Sprintf(`{"id": %q}`, id), http.StatusBadRequest, "Telegram message ID is required"},
		{"string message id", fmt.Sprintf(`{"id": %q, "telegramMessageId": "5"}`, id), http.StatusBadRequest, "Telegram message ID is required"},
		{"fractional message id", fmt.Sprintf(`{"id": %q, "telegramMessageId": 1.5}`, id), http.StatusBadRequest, "Telegram message ID is required"},
		{"unknown", `{"id": "missing", "telegramMessageId": 5}`, http.StatusNotFound, "Questionnaire not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := env.do(t, http.MethodPost, "/api/update-questionnaire-message-id", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.errMsg, out["error"])
		})
	}

	rec, out := env.do(t, http.MethodPost, "/api/update-questionnaire-message-id", fmt.Sprintf(`{"id": %q, "telegramMessageId": 555}`, id))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Message ID updated successfully", out["message"])

	_, out = env.do(t, http.MethodGet, "/api/get-questionnaire?id="+id, "")
	assert.Equal(t, float64(555), out["data"].(map[string]any)["telegramMessageId"])
}

func TestDeleteTelegramMessage(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodPost, "/api/delete-telegram-message", `{"messageId":"12"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, out["success"])

	rec, out = env.do(t, http.MethodPost, "/api/delete-telegram-message", `{"messageId":12}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, []int{12}, env.channel.deleted)

	env.channel.delErr = fmt.Errorf("%w, Bad Request: message to delete not found", bot.ErrorBadRequest)
	rec, out = env.do(t, http.MethodPost, "/api/delete-telegram-message", `{"messageId":13}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "message to delete not found")

	env.channel.delErr = errors.New("connection reset")
	rec, out = env.do(t, http.MethodPost, "/api/delete-telegram-message", `{"messageId":14}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, out["success"])
}

func TestDeleteTelegramMessageWithoutCredentials(t *testing.T) {
	intake := service.NewIntake(questionnaire.MustLoad(), repo.NewMemoryStore(), &repo.LogChannel{})
	gate, err := NewAdminGate("", "", 0)
	require.NoError(t, err)
	env := &testEnv{handler: NewServer(intake, repo.NewContentStore(""), gate).Routes()}

	rec, out := env.do(t, http.MethodPost, "/api/delete-telegram-message", `{"messageId":12}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Telegram credentials not configured", out["error"])
}

func TestFormAndPreview(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodGet, "/api/questionnaire/man?lang=en", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Man Questionnaire", out["title"])
	assert.Equal(t, "en", out["language"])
	assert.NotEmpty(t, out["sections"])

	req := httptest.NewRequest(http.MethodGet, "/api/questionnaire/woman", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	assert.Contains(t, rr.Body.String(), `"title":"Woman Questionnaire"`)

	_, out = env.do(t, http.MethodGet, "/api/questionnaire/woman", "")
	assert.Equal(t, "Женская анкета", out["title"])

	rec, _ = env.do(t, http.MethodGet, "/api/questionnaire/alien", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, out = env.do(t, http.MethodPost, "/api/preview", validBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, out["errors"])
	assert.Contains(t, out["markdown"], "<b>Man Questionnaire</b>")
	assert.Empty(t, env.channel.sent)

	rec, _ = env.do(t, http.MethodPost, "/api/preview", `{"type":"alien"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNegotiateLanguage(t *testing.T) {
	tests := []struct {
		explicit string
		header   string
		want     model.Language
	}{
		{"en", "", model.LanguageEN},
		{"ru", "en-US", model.LanguageRU},
		{"", "en-GB,en;q=0.8", model.LanguageEN},
		{"", "de-DE", model.LanguageRU},
		{"de", "en", model.LanguageEN},
		{"", "", model.LanguageRU},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Accept-Language", tt.header)
		}
		assert.Equal(t, tt.want, negotiateLanguage(tt.explicit, req), "%q / %q", tt.explicit, tt.header)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	rec, out := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])

	rec, _ = env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env = newTestEnv(t, WithMetrics(true))
	submit(t, env, `{"telegram": "@Ivan"}`)
	rec, _ = env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthintake_submissions_total")
	assert.Contains(t, rec.Body.String(), `route="/api/save-questionnaire"`)

	rec, out = env.do(t, http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.GreaterOrEqual(t, out["submissions"], float64(1))
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	env := newTestEnv(t, WithStaticDir(dir))

	rec, _ := env.do(t, http.MethodGet, "/assets/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	for _, p := range []string{"/", "/data-request", "/questionnaire/man", "/assets/"} {
		rec, _ = env.do(t, http.MethodGet, p, "")
		assert.Equal(t, http.StatusOK, rec.Code, p)
		assert.Equal(t, "<html>app</html>", rec.Body.String(), p)
	}

	rec, _ = env.do(t, http.MethodPost, "/", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec, out := env.do(t, http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", out["error"])
}

func TestFindStaticDir(t *testing.T) {
	root := t.TempDir()
	dist := filepath.Join(root, "dist")
	require.NoError(t, os.Mkdir(dist, 0o755))
	assert.Equal(t, dist, FindStaticDir("", filepath.Join(root, "build"), dist))
	assert.Empty(t, FindStaticDir(filepath.Join(root, "build")))
}
