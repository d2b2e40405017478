package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aphorist/aphorist/api"
	"github.com/aphorist/aphorist/auth"
	"github.com/aphorist/aphorist/auth/password"
	"github.com/aphorist/aphorist/auth/token"
	"github.com/aphorist/aphorist/llm"
	"github.com/aphorist/aphorist/logger"
	"github.com/aphorist/aphorist/observability"
	"github.com/aphorist/aphorist/user"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeHashClient is an in-memory stand-in for the Redis hash commands.
type fakeHashClient struct {
	hashes   map[string]map[string]string
	failWith error
}

func newFakeHashClient() *fakeHashClient {
	return &fakeHashClient{hashes: make(map[string]map[string]string)}
}

func (f *fakeHashClient) HSet(_ context.Context, key string, values ...interface{}) error {
	if f.failWith != nil {
		return f.failWith
	}
	h := f.hashes[key]
	if h == nil {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[values[i].(string)] = values[i+1].(string)
	}
	return nil
}

func (f *fakeHashClient) HSetNX(ctx context.Context, key, field string, value interface{}) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	if _, ok := f.hashes[key][field]; ok {
		return false, nil
	}
	return true, f.HSet(ctx, key, field, value)
}

func (f *fakeHashClient) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeHashClient) Del(_ context.Context, keys ...string) error {
	if f.failWith != nil {
		return f.failWith
	}
	for _, key := range keys {
		delete(f.hashes, key)
	}
	return nil
}

// fakeProvider scripts the LLM responses for both endpoints.
type fakeProvider struct {
	completeContent   string
	completeErr       error
	structuredContent string
	structuredErr     error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) IsAvailable(_ context.Context) bool { return true }

func (f *fakeProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &llm.CompletionResponse{Content: f.completeContent, Model: "fake"}, nil
}

func (f *fakeProvider) CompleteStructured(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.structuredErr != nil {
		return nil, f.structuredErr
	}
	return &llm.CompletionResponse{Content: f.structuredContent, Model: "fake"}, nil
}

type testEnv struct {
	engine   *gin.Engine
	client   *fakeHashClient
	provider *fakeProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewDefault("test")

	client := newFakeHashClient()
	store := user.NewStore(client, log)
	hasher := password.NewBcryptHasher(password.WithCost(4))
	tokens, err := token.NewService(token.Config{Secret: "test-secret", AccessTokenTTL: time.Minute})
	if err != nil {
		t.Fatalf("token.NewService failed: %v", err)
	}
	authSvc := auth.NewService(store, hasher, tokens, log)

	metrics, err := observability.NewMetrics("test")
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	provider := &fakeProvider{}
	engine := gin.New()
	api.NewHandler(authSvc, provider, metrics, log).RegisterRoutes(engine)

	return &testEnv{engine: engine, client: client, provider: provider}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.engine.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) register(t *testing.T, username, pw string) {
	t.Helper()
	rr := e.do(httptest.NewRequest("POST", "/register?username="+username+"&password="+pw, http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("register %s: expected 200, got %d: %s", username, rr.Code, rr.Body.String())
	}
}

func (e *testEnv) login(t *testing.T, username, pw string) string {
	t.Helper()
	form := url.Values{"username": {username}, "password": {pw}}
	req := httptest.NewRequest("POST", "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := e.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, rr.Code, rr.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("login response is not valid JSON: %v", err)
	}
	if resp.TokenType != "bearer" {
		t.Fatalf("expected token_type bearer, got %s", resp.TokenType)
	}
	return resp.AccessToken
}

// errorCode extracts error.code from the structured error envelope.
func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("body is not a structured error: %v: %s", err, body)
	}
	return resp.Error.Code
}

// ---------------------------------------------------------------------------
// POST /register
// ---------------------------------------------------------------------------

func TestRegister_Success(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest("POST", "/register?username=alice&password=pw", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp["message"] != "User registered successfully" {
		t.Fatalf("unexpected message: %s", resp["message"])
	}

	fields := env.client.hashes["user:alice"]
	if fields == nil {
		t.Fatal("expected record at user:alice")
	}
	if fields["disabled"] != "False" {
		t.Fatalf("expected disabled False, got %q", fields["disabled"])
	}
	if fields["hashed_password"] == "pw" {
		t.Fatal("password must be stored hashed")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "pw")

	rr := env.do(httptest.NewRequest("POST", "/register?username=alice&password=other", http.NoBody))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr.Body.Bytes()); code != "ALREADY_EXISTS" {
		t.Fatalf("expected ALREADY_EXISTS, got %s", code)
	}

	// First registration's credentials still win.
	env.login(t, "alice", "pw")
}

func TestRegister_MissingParams(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest("POST", "/register?username=alice", http.NoBody))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRegister_StoreDown(t *testing.T) {
	env := newTestEnv(t)
	env.client.failWith = errors.New("connection refused")

	rr := env.do(httptest.NewRequest("POST", "/register?username=alice&password=pw", http.NoBody))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr.Body.Bytes()); code != "SERVICE_UNAVAILABLE" {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %s", code)
	}
}

// ---------------------------------------------------------------------------
// POST /token
// ---------------------------------------------------------------------------

func TestToken_Success(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "pw")

	tok := env.login(t, "alice", "pw")
	if tok == "" {
		t.Fatal("expected a non-empty access token")
	}
}

func TestToken_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "pw")

	form := url.Values{"username": {"alice"}, "password": {"wrong"}}
	req := httptest.NewRequest("POST", "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := env.do(req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatal("expected WWW-Authenticate: Bearer header")
	}
}

func TestToken_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"username": {"nobody"}, "password": {"pw"}}
	req := httptest.NewRequest("POST", "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := env.do(req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestToken_StoreDown(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "pw")
	env.client.failWith = errors.New("connection refused")

	form := url.Values{"username": {"alice"}, "password": {"pw"}}
	req := httptest.NewRequest("POST", "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := env.do(req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rr.Code, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// POST /chat
// ---------------------------------------------------------------------------

func chatRequest(tok, message string) *http.Request {
	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"message":"`+message+`"}`))
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req
}

func TestChat_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(chatRequest("", "hello"))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatal("expected WWW-Authenticate: Bearer header")
	}
}

func TestChat_RejectsBadToken(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(chatRequest("garbage", "hello"))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestChat_Success(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "pw")
	tok := env.login(t, "alice", "pw")
	env.provider.completeContent = "a reply"

	rr := env.do(chatRequest(tok, "hello"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Response != "a reply" {
		t.Fatalf("expected 'a reply', got %q", resp.Response)
	}
}

func TestChat_MissingMessage(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "pw")
	tok := env.login(t, "alice", "pw")

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := env.do(req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestChat_ProviderError(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "pw")
	tok := env.login(t, "alice", "pw")
	env.provider.completeErr = errors.New("deployment not found")

	rr := env.do(chatRequest(tok, "hello"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr.Body.Bytes()); code != "EXTERNAL_SERVICE_ERROR" {
		t.Fatalf("expected EXTERNAL_SERVICE_ERROR, got %s", code)
	}
}

func TestChat_DisabledUser(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "pw")
	tok := env.login(t, "alice", "pw")

	env.client.hashes["user:alice"]["disabled"] = "True"

	rr := env.do(chatRequest(tok, "hello"))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for disabled user, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestChat_StoreDownAtGate(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "pw")
	tok := env.login(t, "alice", "pw")
	env.client.failWith = errors.New("connection refused")

	rr := env.do(chatRequest(tok, "hello"))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rr.Code, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// GET /quote
// ---------------------------------------------------------------------------

func TestQuote_Success(t *testing.T) {
	env := newTestEnv(t)
	env.provider.structuredContent = `{"quote":"Q","interpretation":"I"}`

	rr := env.do(httptest.NewRequest("GET", "/quote", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Quote          string `json:"quote"`
		Interpretation string `json:"interpretation"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Quote != "Q" || resp.Interpretation != "I" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestQuote_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	env.provider.structuredContent = `{"quote":"Q","interpretation":"I"}`

	rr := env.do(httptest.NewRequest("GET", "/quote", http.NoBody))
	if rr.Code == http.StatusUnauthorized {
		t.Fatal("quote endpoint must not require authentication")
	}
}

func TestQuote_ProviderError(t *testing.T) {
	env := newTestEnv(t)
	env.provider.structuredErr = errors.New("rate limited")

	rr := env.do(httptest.NewRequest("GET", "/quote", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("quote errors must still respond 200, got %d", rr.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if !strings.Contains(resp["error"], "rate limited") {
		t.Fatalf("expected error detail in body, got %q", resp["error"])
	}
}

func TestQuote_UnparseableModelOutput(t *testing.T) {
	env := newTestEnv(t)
	env.provider.structuredContent = "definitely not json"

	rr := env.do(httptest.NewRequest("GET", "/quote", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp struct {
		Quote string `json:"quote"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Quote != "An error occurred. Please try again." {
		t.Fatalf("expected fallback quote, got %q", resp.Quote)
	}
}
