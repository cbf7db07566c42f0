package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"celeb-trivia-service/internal/app"
	"celeb-trivia-service/internal/catalog"
	"celeb-trivia-service/internal/domain"
	"celeb-trivia-service/internal/infra/memory"
	"celeb-trivia-service/internal/metrics"
)

func newTestServer(t *testing.T, loader catalog.Loader) *httptest.Server {
	t.Helper()
	if loader == nil {
		loader = memory.NewStaticCatalogLoader(sampleDocument())
	}
	store := memory.NewProgressStore()
	service, err := app.NewGameService(app.Dependencies{
		Catalog:     memory.NewCatalogRepository(loader, 0),
		Progress:    store,
		Leaderboard: store,
		Assets:      staticAssets{},
		Rand:        rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := httptest.NewServer(NewHandler(service, metrics.New(), logger).Router())
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestQuestionRewardAndProgressFlow(t *testing.T) {
	server := newTestServer(t, nil)

	var user domain.User
	if status := doJSON(t, http.MethodPost, server.URL+"/api/users", map[string]any{"username": "alex"}, &user); status != http.StatusCreated {
		t.Fatalf("create user status %d", status)
	}

	var q domain.Question
	status := doJSON(t, http.MethodPost, server.URL+"/api/question", `{"category":"actors","level":1,"guessedNames":["alice"]}`, &q)
	if status != http.StatusOK {
		t.Fatalf("question status %d", status)
	}
	if q.Target != "bob" || q.Level != 1 || len(q.DistractorNames) != 1 || q.DistractorNames[0] != "alice" {
		t.Fatalf("unexpected question %+v", q)
	}
	if q.ImageURL != "/images/bob.jpg" {
		t.Fatalf("unexpected image %q", q.ImageURL)
	}

	var res domain.RewardResult
	status = doJSON(t, http.MethodPost, server.URL+"/api/rewards", map[string]any{
		"userId": user.ID, "category": "actors", "level": "level_1", "points": 20,
		"guessedNames": []string{"alice", "bob"}, "totalPoints": 20,
	}, &res)
	if status != http.StatusOK {
		t.Fatalf("reward status %d", status)
	}
	if !res.EndGame || res.LevelUp {
		t.Fatalf("expected end of game for the single level, got %+v", res)
	}

	var exhausted exhaustedResponse
	status = doJSON(t, http.MethodPost, server.URL+"/api/question", `{"category":"actors","level":"1","guessedNames":["alice","bob"]}`, &exhausted)
	if status != http.StatusOK || !exhausted.Exhausted {
		t.Fatalf("expected exhausted response, got %d %+v", status, exhausted)
	}

	var progress domain.UserProgress
	if status := doJSON(t, http.MethodGet, server.URL+"/api/users/"+user.ID+"/progress", nil, &progress); status != http.StatusOK {
		t.Fatalf("progress status %d", status)
	}
	if progress.User.TotalPoints != 20 || len(progress.Categories["actors"]) != 1 {
		t.Fatalf("unexpected progress %+v", progress)
	}

	var board domain.Leaderboard
	if status := doJSON(t, http.MethodGet, server.URL+"/api/leaderboard?userId="+user.ID, nil, &board); status != http.StatusOK {
		t.Fatalf("leaderboard status %d", status)
	}
	if len(board.Entries) != 1 || board.UserRank == nil || board.UserRank.Rank != 1 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}

	if status := doJSON(t, http.MethodDelete, server.URL+"/api/users/"+user.ID, nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete status %d", status)
	}
	var body errorBody
	if status := doJSON(t, http.MethodGet, server.URL+"/api/users/"+user.ID+"/progress", nil, &body); status != http.StatusNotFound || body.Code != "not_found" {
		t.Fatalf("expected 404 after delete, got %d %+v", status, body)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	server := newTestServer(t, nil)
	cases := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"bad json", "/api/question", `{"category":`, http.StatusBadRequest, "validation"},
		{"bad level", "/api/question", `{"category":"actors","level":"zero"}`, http.StatusBadRequest, "validation"},
		{"unknown category", "/api/question", `{"category":"painters","level":1}`, http.StatusNotFound, "not_found"},
		{"unknown level", "/api/question", `{"category":"actors","level":7}`, http.StatusNotFound, "not_found"},
		{"missing user", "/api/rewards", `{"category":"actors","level":1,"points":5}`, http.StatusBadRequest, "validation"},
		{"unknown user", "/api/rewards", `{"userId":"ghost","category":"actors","level":1,"points":5}`, http.StatusNotFound, "not_found"},
		{"negative points", "/api/rewards", `{"userId":"ghost","category":"actors","level":1,"points":-5}`, http.StatusBadRequest, "validation"},
		{"empty username", "/api/users", `{"username":" "}`, http.StatusBadRequest, "validation"},
	}
	for _, tc := range cases {
		var body errorBody
		status := doJSON(t, http.MethodPost, server.URL+tc.path, tc.body, &body)
		if status != tc.status || body.Code != tc.code {
			t.Fatalf("%s: expected %d/%s, got %d/%+v", tc.name, tc.status, tc.code, status, body)
		}
	}
}

func TestCatalogUnavailableIs503(t *testing.T) {
	server := newTestServer(t, brokenLoader{})

	var body errorBody
	if status := doJSON(t, http.MethodPost, server.URL+"/api/question", `{"category":"actors","level":1}`, &body); status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d %+v", status, body)
	}
	if status := doJSON(t, http.MethodPost, server.URL+"/api/catalog/refresh", nil, &body); status != http.StatusServiceUnavailable || body.Code != "catalog_unavailable" {
		t.Fatalf("expected 503 on refresh, got %d %+v", status, body)
	}
}

func TestBrokenCatalogIs503(t *testing.T) {
	doc := sampleDocument()
	doc.Names["beginner"] = doc.Names["1"]
	server := newTestServer(t, memory.NewStaticCatalogLoader(doc))

	var body errorBody
	if status := doJSON(t, http.MethodPost, server.URL+"/api/question", `{"category":"actors","level":1}`, &body); status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d (%+v)", status, body)
	}
	if body.Code != "catalog_unavailable" {
		t.Fatalf("expected catalog_unavailable code, got %+v", body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	server := newTestServer(t, nil)
	doJSON(t, http.MethodPost, server.URL+"/api/question", `{"category":"actors","level":1}`, &domain.Question{})

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), `trivia_questions_total{outcome="served"} 1`) {
		t.Fatalf("expected question counter in metrics output")
	}
	if !strings.Contains(string(data), `route="/api/question"`) {
		t.Fatalf("expected route label in metrics output")
	}
}

func TestClassifyStorageError(t *testing.T) {
	status, code := classify(&domain.StorageError{Op: "apply reward", Err: errors.New("disk full")})
	if status != http.StatusInternalServerError || code != "storage" {
		t.Fatalf("unexpected classification %d/%s", status, code)
	}
}

type staticAssets struct{}

func (staticAssets) ImageURL(name string) string { return "/images/" + name + ".jpg" }

type brokenLoader struct{}

func (brokenLoader) LoadCatalog(context.Context) (catalog.Document, error) {
	return catalog.Document{}, errors.New("bucket unreachable")
}

func sampleDocument() catalog.Document {
	return catalog.Document{
		Names: map[string]map[string][]string{
			"1": {"actors": {"alice", "bob"}},
		},
		Records: map[string]map[string]catalog.RecordData{
			"1": {
				"alice": {Facts: []string{"a1"}, Categories: []string{"actors"}},
				"bob":   {Facts: []string{"b1", "b2"}, Categories: []string{"actors"}},
			},
		},
		Categories: map[string]catalog.CategoryData{"actors": {Levels: 1}},
	}
}
