package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"example.com/signup/internal/domain"
	"example.com/signup/internal/logger"
	"example.com/signup/internal/persistence/memory"
)

func newTestMux(t *testing.T) (*http.ServeMux, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	if _, err := domain.NewSeeder(repo, domain.SeedActivities(), nil).EnsureSeedData(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	mux := http.NewServeMux()
	NewHandler(domain.NewService(repo)).RegisterRoutes(mux)
	return mux, repo
}

func do(mux http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func rosterPath(name, action, email string) string {
	p := "/activities/" + url.PathEscape(name) + "/" + action
	if email != "" {
		p += "?email=" + url.QueryEscape(email)
	}
	return p
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func TestRootRedirectsToIndex(t *testing.T) {
	mux, _ := newTestMux(t)

	rr := do(mux, http.MethodGet, "/", "")
	if rr.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307 got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/static/index.html" {
		t.Fatalf("unexpected redirect target %q", loc)
	}
}

func TestListActivitiesReturnsSeededCatalog(t *testing.T) {
	mux, _ := newTestMux(t)

	rr := do(mux, http.MethodGet, "/activities", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ActivitiesResponse
	decodeBody(t, rr, &resp)
	if len(resp) != 9 {
		t.Fatalf("expected 9 activities got %d", len(resp))
	}
	chess, ok := resp["Chess Club"]
	if !ok {
		t.Fatalf("Chess Club missing from %v", resp)
	}
	if chess.MaxParticipants != 12 || chess.Schedule != "Fridays, 3:30 PM - 5:00 PM" {
		t.Fatalf("unexpected chess club view %+v", chess)
	}
	if len(chess.Participants) != 2 || chess.Participants[0] != "michael@mergington.edu" {
		t.Fatalf("unexpected participants %v", chess.Participants)
	}
}

func TestListActivitiesEncodesEmptyRosterAsArray(t *testing.T) {
	repo := memory.NewRepository()
	if err := repo.Insert(context.Background(), domain.Activity{Name: "Quiet Club", MaxParticipants: 4}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	mux := http.NewServeMux()
	NewHandler(domain.NewService(repo)).RegisterRoutes(mux)

	rr := do(mux, http.MethodGet, "/activities", "")
	if !strings.Contains(rr.Body.String(), `"participants":[]`) {
		t.Fatalf("expected empty participants array, got %s", rr.Body.String())
	}
}

func TestSignupThenUnregister(t *testing.T) {
	mux, repo := newTestMux(t)
	email := "new.student@mergington.edu"

	rr := do(mux, http.MethodPost, rosterPath("Chess Club", "signup", email), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var msg MessageResponse
	decodeBody(t, rr, &msg)
	if msg.Message != "Signed up new.student@mergington.edu for Chess Club" {
		t.Fatalf("unexpected message %q", msg.Message)
	}

	chess, _ := repo.Get(context.Background(), "Chess Club")
	if !chess.HasParticipant(email) {
		t.Fatalf("expected %s on roster %v", email, chess.Participants)
	}

	rr = do(mux, http.MethodDelete, rosterPath("Chess Club", "unregister", email), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr, &msg)
	if msg.Message != "Unregistered new.student@mergington.edu from Chess Club" {
		t.Fatalf("unexpected message %q", msg.Message)
	}

	chess, _ = repo.Get(context.Background(), "Chess Club")
	if chess.HasParticipant(email) {
		t.Fatalf("expected %s removed from %v", email, chess.Participants)
	}
}

func TestSignupAcceptsJSONBody(t *testing.T) {
	mux, repo := newTestMux(t)

	rr := do(mux, http.MethodPost, rosterPath("Art Club", "signup", ""), `{"email":"painter@mergington.edu"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	art, _ := repo.Get(context.Background(), "Art Club")
	if !art.HasParticipant("painter@mergington.edu") {
		t.Fatalf("expected painter on roster %v", art.Participants)
	}
}

func TestRosterErrors(t *testing.T) {
	cases := []struct {
		name   string
		method string
		target string
		body   string
		status int
		kind   string
		detail string
	}{
		{
			name:   "unknown activity signup",
			method: http.MethodPost,
			target: rosterPath("Knitting Circle", "signup", "a@mergington.edu"),
			status: http.StatusNotFound,
			kind:   "not_found",
			detail: "Activity not found",
		},
		{
			name:   "unknown activity unregister",
			method: http.MethodDelete,
			target: rosterPath("Knitting Circle", "unregister", "a@mergington.edu"),
			status: http.StatusNotFound,
			kind:   "not_found",
			detail: "Activity not found",
		},
		{
			name:   "duplicate signup",
			method: http.MethodPost,
			target: rosterPath("Chess Club", "signup", "michael@mergington.edu"),
			status: http.StatusBadRequest,
			kind:   "conflict",
			detail: "Already signed up for this activity",
		},
		{
			name:   "unregister non member",
			method: http.MethodDelete,
			target: rosterPath("Chess Club", "unregister", "ghost@mergington.edu"),
			status: http.StatusBadRequest,
			kind:   "conflict",
			detail: "Student not signed up for this activity",
		},
		{
			name:   "missing email",
			method: http.MethodPost,
			target: rosterPath("Chess Club", "signup", ""),
			status: http.StatusBadRequest,
			kind:   "validation_failed",
			detail: "email is required",
		},
		{
			name:   "malformed body",
			method: http.MethodPost,
			target: rosterPath("Chess Club", "signup", ""),
			body:   "{",
			status: http.StatusBadRequest,
			kind:   "validation_failed",
			detail: "unable to parse body",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux, _ := newTestMux(t)
			rr := do(mux, tc.method, tc.target, tc.body)
			if rr.Code != tc.status {
				t.Fatalf("expected %d got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			var body map[string]string
			decodeBody(t, rr, &body)
			if body["type"] != tc.kind || body["detail"] != tc.detail {
				t.Fatalf("unexpected error body %v", body)
			}
		})
	}
}

func TestSignupRejectsFullActivity(t *testing.T) {
	repo := memory.NewRepository()
	if err := repo.Insert(context.Background(), domain.Activity{
		Name:            "Tiny Club",
		MaxParticipants: 1,
		Participants:    []string{"first@mergington.edu"},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	mux := http.NewServeMux()
	NewHandler(domain.NewService(repo)).RegisterRoutes(mux)

	rr := do(mux, http.MethodPost, rosterPath("Tiny Club", "signup", "second@mergington.edu"), "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	var body map[string]string
	decodeBody(t, rr, &body)
	if body["detail"] != "Activity is full" {
		t.Fatalf("unexpected detail %q", body["detail"])
	}
}

func TestWrongMethodIsRejected(t *testing.T) {
	mux, _ := newTestMux(t)

	rr := do(mux, http.MethodGet, rosterPath("Chess Club", "signup", "a@mergington.edu"), "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rr.Code)
	}
}

func TestStoreFailureMapsToServerError(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(domain.NewService(failingRepo{})).RegisterRoutes(mux)

	rr := do(mux, http.MethodGet, "/activities", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "connection refused") {
		t.Fatalf("store error leaked to client: %s", rr.Body.String())
	}
}

func TestMountStaticServesIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Mergington</h1>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	mux := http.NewServeMux()
	MountStatic(mux, "/static/", dir)

	rr := do(mux, http.MethodGet, "/static/index.html", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Mergington") {
		t.Fatalf("unexpected static response %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRootRedirectLandsOnIndexPage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Mergington</h1>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	mux, _ := newTestMux(t)
	MountStatic(mux, "/static/", dir)

	rr := do(mux, http.MethodGet, "/", "")
	if rr.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307 got %d", rr.Code)
	}
	rr = do(mux, http.MethodGet, rr.Header().Get("Location"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("redirect target answered %d (Location=%q)", rr.Code, rr.Header().Get("Location"))
	}
	if !strings.Contains(rr.Body.String(), "Mergington") {
		t.Fatalf("unexpected index body %s", rr.Body.String())
	}
}

func TestMountStaticServesOtherAssets(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatalf("write app.js: %v", err)
	}
	mux := http.NewServeMux()
	MountStatic(mux, "/static/", dir)

	rr := do(mux, http.MethodGet, "/static/app.js", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "console.log(1)" {
		t.Fatalf("unexpected asset response %d: %s", rr.Code, rr.Body.String())
	}
	rr = do(mux, http.MethodGet, "/static/missing.css", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestSignupUsesEmailExactlyAsSent(t *testing.T) {
	mux, repo := newTestMux(t)
	padded := " michael@mergington.edu "

	rr := do(mux, http.MethodPost, rosterPath("Chess Club", "signup", padded), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	chess, _ := repo.Get(context.Background(), "Chess Club")
	if !chess.HasParticipant(padded) {
		t.Fatalf("expected padded email on roster %q", chess.Participants)
	}

	rr = do(mux, http.MethodPost, rosterPath("Chess Club", "signup", "   "), "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank email got %d", rr.Code)
	}
}

func TestObserveLogsRequestsAtInfo(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}
	mux, _ := newTestMux(t)

	rr := do(Chain(mux, Observe(log)), http.MethodGet, "/activities", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/activities" || fields["status"] != int64(http.StatusOK) {
		t.Fatalf("unexpected request log fields %v", fields)
	}
}

func TestCORSPreflight(t *testing.T) {
	mux, _ := newTestMux(t)
	h := Chain(mux, CORS("http://localhost:5173"))

	rr := do(h, http.MethodOptions, "/activities", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected allow origin %q", got)
	}

	rr = do(Chain(mux, CORS("")), http.MethodGet, "/activities", "")
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("CORS headers set while disabled")
	}
}

type failingRepo struct{}

var errRefused = errors.New("dial tcp: connection refused")

func (failingRepo) Count(context.Context) (int64, error)                  { return 0, errRefused }
func (failingRepo) Insert(context.Context, domain.Activity) error         { return errRefused }
func (failingRepo) List(context.Context) ([]domain.Activity, error)       { return nil, errRefused }
func (failingRepo) Get(context.Context, string) (*domain.Activity, error) { return nil, errRefused }
func (failingRepo) AddParticipant(context.Context, string, string) (*domain.Activity, error) {
	return nil, errRefused
}
func (failingRepo) RemoveParticipant(context.Context, string, string) (*domain.Activity, error) {
	return nil, errRefused
}
