package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/musicdoc/internal/generate"
	"github.com/kalambet/musicdoc/internal/jobs"
	"github.com/kalambet/musicdoc/internal/lookup"
	"github.com/kalambet/musicdoc/internal/matching"
	"github.com/kalambet/musicdoc/internal/storage"
	"github.com/kalambet/musicdoc/internal/timeline"
)

const testToken = "test-token-12345"

// mockRunner records started jobs instead of running them.
type mockRunner struct {
	mu      sync.Mutex
	started []jobs.Job
	startFn func(ctx context.Context, job jobs.Job)
}

func (m *mockRunner) Start(ctx context.Context, job jobs.Job) {
	m.mu.Lock()
	m.started = append(m.started, job)
	m.mu.Unlock()
	if m.startFn != nil {
		m.startFn(ctx, job)
	}
}

type mockSearcher struct {
	searchFn func(ctx context.Context, query string) ([]lookup.Video, error)
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]lookup.Video, error) {
	return m.searchFn(ctx, query)
}

type mockInspector struct {
	video lookup.Video
	err   error
}

func (m *mockInspector) Inspect(context.Context, string) (lookup.Video, error) {
	return m.video, m.err
}

type mockDocumentarian struct {
	composeFn func(ctx context.Context, req generate.PlanRequest) (*timeline.Documentary, error)
}

func (m *mockDocumentarian) Compose(ctx context.Context, req generate.PlanRequest) (*timeline.Documentary, error) {
	return m.composeFn(ctx, req)
}

type testEnv struct {
	handler   http.Handler
	jobs      *jobs.Store
	playlists *storage.Store
	runner    *mockRunner
	deps      AppDeps
}

func setupTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	ps, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { ps.Close() })

	store := jobs.NewStore(jobs.Options{})
	t.Cleanup(store.Shutdown)

	searcher := &mockSearcher{searchFn: func(_ context.Context, q string) ([]lookup.Video, error) {
		return []lookup.Video{{ID: "v1", Title: "Blur - Song 2", ChannelTitle: "Blur", DurationSec: 122}}, nil
	}}
	runner := &mockRunner{}
	deps := AppDeps{
		Jobs:          store,
		Runner:        runner,
		Playlists:     ps,
		Searcher:      searcher,
		Matcher:       matching.NewMatcher(searcher),
		Inspector:     &mockInspector{video: lookup.Video{ID: "v1", Title: "Song 2", DurationSec: 122}},
		Documentarian: generate.MockDocumentarian{},
		SearchMethod:  "api",
		Threshold:     0.8,
		Token:         token,
		Keepalive:     time.Hour,
	}
	return &testEnv{handler: NewAppHandler(deps), jobs: store, playlists: ps, runner: runner, deps: deps}
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t, testToken)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	decodeBody(t, rr, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestAuth(t *testing.T) {
	env := setupTestEnv(t, testToken)

	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/jobs", "", ""))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	var eb errorBody
	decodeBody(t, rr, &eb)
	if eb.Error.Type != "authentication_error" {
		t.Errorf("type = %q", eb.Error.Type)
	}

	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/jobs", "", "wrong"))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", rr.Code)
	}

	open := setupTestEnv(t, "")
	rr = httptest.NewRecorder()
	open.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/jobs", "", ""))
	if rr.Code != http.StatusOK {
		t.Errorf("no-token status = %d, want 200", rr.Code)
	}
}

func TestCreateJob(t *testing.T) {
	env := setupTestEnv(t, testToken)

	rr := httptest.NewRecorder()
	req := authReq(http.MethodPost, "/api/jobs", `{"topic":"  Blur ","narrationTargetSecs":20}`, testToken)
	req.Header.Set("X-User-ID", "alice")
	env.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body = %s", rr.Code, rr.Body.String())
	}
	var body struct {
		OK    bool     `json:"ok"`
		JobID string   `json:"jobId"`
		Job   jobs.Job `json:"job"`
	}
	decodeBody(t, rr, &body)
	if !body.OK || !strings.HasPrefix(body.JobID, "job_") {
		t.Errorf("body = %+v", body)
	}
	if body.Job.UserID != "alice" || body.Job.Params.Topic != "Blur" {
		t.Errorf("job = %+v", body.Job)
	}
	if len(env.runner.started) != 1 || env.runner.started[0].ID != body.JobID {
		t.Errorf("runner started %v", env.runner.started)
	}
}

func TestCreateJob_Validation(t *testing.T) {
	env := setupTestEnv(t, testToken)
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"topic":`},
		{"missing topic", `{}`},
		{"blank topic", `{"topic":"   "}`},
		{"negative target", `{"topic":"x","narrationTargetSecs":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			env.handler.ServeHTTP(rr, authReq(http.MethodPost, "/api/jobs", tt.body, testToken))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			var eb errorBody
			decodeBody(t, rr, &eb)
			if eb.Error.Type != "invalid_request_error" {
				t.Errorf("type = %q", eb.Error.Type)
			}
		})
	}
	if len(env.runner.started) != 0 {
		t.Errorf("runner started %d jobs, want 0", len(env.runner.started))
	}
}

func TestCreateJob_ConcurrencyLimit(t *testing.T) {
	env := setupTestEnv(t, testToken)
	post := func() *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, authReq(http.MethodPost, "/api/jobs", `{"topic":"Blur"}`, testToken))
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := post(); rr.Code != http.StatusAccepted {
			t.Fatalf("job %d status = %d", i, rr.Code)
		}
	}
	rr := post()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third job status = %d, want 429", rr.Code)
	}
	var eb errorBody
	decodeBody(t, rr, &eb)
	if eb.Error.Type != "rate_limit_error" {
		t.Errorf("type = %q", eb.Error.Type)
	}

	env.jobs.FailJob(env.runner.started[0].ID, io.EOF)
	if rr := post(); rr.Code != http.StatusAccepted {
		t.Errorf("after failure status = %d, want 202", rr.Code)
	}
}

func TestGetAndListJobs(t *testing.T) {
	env := setupTestEnv(t, testToken)
	first, _ := env.jobs.CreateJob(DefaultUserID, jobs.Params{Topic: "a"})
	second, _ := env.jobs.CreateJob(DefaultUserID, jobs.Params{Topic: "b"})
	env.jobs.CreateJob("bob", jobs.Params{Topic: "c"})

	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/jobs/"+first.ID, "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var got struct {
		Job jobs.Job `json:"job"`
	}
	decodeBody(t, rr, &got)
	if got.Job.ID != first.ID || got.Job.Status != jobs.StatusPending {
		t.Errorf("job = %+v", got.Job)
	}

	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/jobs", "", testToken))
	var list struct {
		Jobs []jobs.Job `json:"jobs"`
	}
	decodeBody(t, rr, &list)
	if len(list.Jobs) != 2 || list.Jobs[0].ID != second.ID {
		t.Errorf("jobs = %+v, want 2 newest first", list.Jobs)
	}

	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/jobs/job_missing", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rr.Code)
	}

	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/jobs/stats", "", testToken))
	var stats struct {
		Stats jobs.Stats `json:"stats"`
	}
	decodeBody(t, rr, &stats)
	if stats.Stats.Total != 3 || stats.Stats.Pending != 3 {
		t.Errorf("stats = %+v", stats.Stats)
	}
}

func TestJobStream_FinishedJob(t *testing.T) {
	env := setupTestEnv(t, testToken)
	job, _ := env.jobs.CreateJob(DefaultUserID, jobs.Params{Topic: "a"})
	env.jobs.CompleteJob(job.ID, map[string]string{"playlistId": "p1"})

	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/jobs/"+job.ID+"/stream", "", testToken))

	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	events := parseSSE(t, rr.Body)
	if len(events) != 2 {
		t.Fatalf("events = %+v, want init + complete", events)
	}
	if events[0].Type != jobs.EventInit || events[1].Type != jobs.EventComplete {
		t.Errorf("types = %s, %s", events[0].Type, events[1].Type)
	}
	if events[1].Progress != 100 {
		t.Errorf("complete progress = %d, want 100", events[1].Progress)
	}
}

func TestJobStream_NotFound(t *testing.T) {
	env := setupTestEnv(t, testToken)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/jobs/job_nope/stream", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestJobStream_Live(t *testing.T) {
	env := setupTestEnv(t, "")
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	job, _ := env.jobs.CreateJob(DefaultUserID, jobs.Params{Topic: "a"})
	env.jobs.UpdateProgress(job.ID, jobs.Update{Status: jobs.StatusRunning, Stage: 1, Progress: 5})

	resp, err := http.Get(srv.URL + "/api/jobs/" + job.ID + "/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	r := bufio.NewReader(resp.Body)

	init := readEvent(t, r)
	if init.Type != jobs.EventInit || init.Progress != 5 || init.Status != jobs.StatusRunning {
		t.Fatalf("init = %+v", init)
	}

	env.jobs.UpdateProgress(job.ID, jobs.Update{Stage: 2, StageLabel: "Preparing playlist", Progress: 30})
	if ev := readEvent(t, r); ev.Type != jobs.EventProgress || ev.Progress != 30 || ev.StageLabel != "Preparing playlist" {
		t.Fatalf("progress = %+v", ev)
	}

	env.jobs.FailJob(job.ID, io.ErrUnexpectedEOF)
	ev := readEvent(t, r)
	if ev.Type != jobs.EventError || ev.Error != io.ErrUnexpectedEOF.Error() {
		t.Fatalf("error event = %+v", ev)
	}
	if _, err := r.ReadString('\n'); err != io.EOF {
		t.Errorf("stream not closed after terminal event: %v", err)
	}
}

func parseSSE(t *testing.T, body io.Reader) []jobs.Event {
	t.Helper()
	var events []jobs.Event
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev jobs.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func readEvent(t *testing.T, r *bufio.Reader) jobs.Event {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev jobs.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		return ev
	}
}

func TestPlaylists(t *testing.T) {
	env := setupTestEnv(t, testToken)

	body := `{"ownerId":"alice","title":"Blur","source":"youtube","timeline":[
		{"type":"narration","slot_id":"intro","title":"Intro","text":"Hi."},
		{"type":"song","slot_id":"slot-1","title":"Song 2","artist":"Blur","duration_ms":121000}
	]}`
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodPost, "/api/playlists", body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("create status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Playlist storage.Playlist `json:"playlist"`
	}
	decodeBody(t, rr, &created)
	song := created.Playlist.Timeline[1].Song
	if song == nil || song.YouTube.VideoID == nil || *song.YouTube.VideoID != "v1" {
		t.Fatalf("song not mapped: %+v", created.Playlist.Timeline[1])
	}
	if song.YouTube.MatchedConfidence != 1 {
		t.Errorf("confidence = %v, want 1", song.YouTube.MatchedConfidence)
	}

	id := created.Playlist.ID
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodPatch, "/api/playlists/"+id, `{"title":"Blur, revised"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/playlists/"+id, "", testToken))
	var got struct {
		Playlist storage.Playlist `json:"playlist"`
	}
	decodeBody(t, rr, &got)
	if got.Playlist.Title != "Blur, revised" || len(got.Playlist.Timeline) != 2 {
		t.Errorf("playlist = %+v", got.Playlist)
	}

	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/users/alice/playlists", "", testToken))
	var list struct {
		Playlists []storage.Playlist `json:"playlists"`
	}
	decodeBody(t, rr, &list)
	if len(list.Playlists) != 1 {
		t.Errorf("len(playlists) = %d, want 1", len(list.Playlists))
	}

	for _, path := range []string{"/api/playlists/nope"} {
		rr = httptest.NewRecorder()
		env.handler.ServeHTTP(rr, authReq(http.MethodGet, path, "", testToken))
		if rr.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rr.Code)
		}
		rr = httptest.NewRecorder()
		env.handler.ServeHTTP(rr, authReq(http.MethodPatch, path, `{}`, testToken))
		if rr.Code != http.StatusNotFound {
			t.Errorf("PATCH %s status = %d, want 404", path, rr.Code)
		}
	}
}

func TestCreatePlaylist_Validation(t *testing.T) {
	env := setupTestEnv(t, testToken)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodPost, "/api/playlists", `{"ownerId":"a","title":"t"}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestLookupRoutes(t *testing.T) {
	env := setupTestEnv(t, testToken)

	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/youtube/config", "", testToken))
	var cfg map[string]any
	decodeBody(t, rr, &cfg)
	if cfg["enabled"] != true || cfg["method"] != "api" {
		t.Errorf("config = %v", cfg)
	}

	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/youtube/search?q=song+2", "", testToken))
	var search struct {
		Results []lookup.Video `json:"results"`
	}
	decodeBody(t, rr, &search)
	if len(search.Results) != 1 || search.Results[0].ID != "v1" {
		t.Errorf("results = %+v", search.Results)
	}

	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/youtube/search", "", testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty q status = %d, want 400", rr.Code)
	}

	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodPost, "/api/youtube/map",
		`{"timeline":[{"type":"song","title":"Song 2","artist":"Blur"}]}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("map status = %d; body = %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/videos/v1", "", testToken))
	var v struct {
		Video lookup.Video `json:"video"`
	}
	decodeBody(t, rr, &v)
	if v.Video.DurationSec != 122 {
		t.Errorf("video = %+v", v.Video)
	}
}

func TestLookupRoutes_LegacyPaths(t *testing.T) {
	env := setupTestEnv(t, testToken)

	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodGet, "/api/youtube-config", "", testToken))
	var cfg map[string]any
	decodeBody(t, rr, &cfg)
	if cfg["enabled"] != true {
		t.Errorf("config = %v", cfg)
	}

	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodPost, "/api/youtube-map-tracks",
		`{"timeline":[{"type":"narration","title":"Intro","text":"Hi."},{"type":"song","title":"Song 2","artist":"Blur"}]}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("map status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var mapped struct {
		Timeline []timeline.Entry `json:"timeline"`
	}
	decodeBody(t, rr, &mapped)
	if len(mapped.Timeline) != 2 || mapped.Timeline[1].Song == nil {
		t.Fatalf("timeline = %+v", mapped.Timeline)
	}
	if id := mapped.Timeline[1].Song.YouTube.VideoID; id == nil || *id != "v1" {
		t.Errorf("youtube = %+v, want v1", mapped.Timeline[1].Song.YouTube)
	}
}

func TestComposeDocumentary(t *testing.T) {
	env := setupTestEnv(t, testToken)

	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, authReq(http.MethodPost, "/api/music-doc-lite",
		`{"topic":"Test Topic","prompt":"Keep it sharp","narrationTargetSecs":20}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var doc timeline.Documentary
	decodeBody(t, rr, &doc)
	if doc.Topic != "Test Topic" {
		t.Errorf("Topic = %q, want %q", doc.Topic, "Test Topic")
	}
	if n := timeline.Songs(doc.Timeline); n == 0 || n == len(doc.Timeline) {
		t.Errorf("timeline has %d songs of %d entries, want both kinds", n, len(doc.Timeline))
	}
	if len(env.runner.started) != 0 {
		t.Errorf("started %d jobs, want 0", len(env.runner.started))
	}
	if n, _ := env.playlists.CountPlaylists(); n != 0 {
		t.Errorf("playlists = %d, want 0", n)
	}
}

func TestComposeDocumentary_Errors(t *testing.T) {
	env := setupTestEnv(t, testToken)
	var got generate.PlanRequest
	env.deps.Documentarian = &mockDocumentarian{composeFn: func(_ context.Context, req generate.PlanRequest) (*timeline.Documentary, error) {
		got = req
		return nil, fmt.Errorf("%w: timeline too short", generate.ErrInvalidOutput)
	}}
	h := NewAppHandler(env.deps)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/api/music-doc-lite", `{"topic":"  Blur  "}`, testToken))
	if rr.Code != http.StatusBadGateway {
		t.Errorf("invalid output status = %d, want 502", rr.Code)
	}
	if got.Topic != "Blur" {
		t.Errorf("Topic = %q, want trimmed", got.Topic)
	}

	for _, body := range []string{`{}`, `{"topic":"   "}`, `not json`} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, authReq(http.MethodPost, "/api/music-doc-lite", body, testToken))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rr.Code)
		}
	}

	env.deps.Documentarian = nil
	rr = httptest.NewRecorder()
	NewAppHandler(env.deps).ServeHTTP(rr, authReq(http.MethodPost, "/api/music-doc-lite", `{"topic":"Blur"}`, testToken))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled status = %d, want 503", rr.Code)
	}
}

func TestLookupRoutes_Quota(t *testing.T) {
	env := setupTestEnv(t, testToken)
	env.deps.Searcher = &mockSearcher{searchFn: func(context.Context, string) ([]lookup.Video, error) {
		return nil, lookup.ErrQuotaExceeded
	}}
	h := NewAppHandler(env.deps)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/api/youtube/search?q=x", "", testToken))
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rr.Code)
	}
}

func TestLookupDisabled(t *testing.T) {
	env := setupTestEnv(t, testToken)
	env.deps.Searcher, env.deps.Matcher, env.deps.Inspector = nil, nil, nil
	h := NewAppHandler(env.deps)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/api/youtube/config", "", testToken))
	var cfg map[string]any
	decodeBody(t, rr, &cfg)
	if cfg["enabled"] != false {
		t.Errorf("enabled = %v, want false", cfg["enabled"])
	}

	for _, req := range []*http.Request{
		authReq(http.MethodGet, "/api/youtube/search?q=x", "", testToken),
		authReq(http.MethodPost, "/api/youtube/map", `{"timeline":[]}`, testToken),
		authReq(http.MethodGet, "/api/videos/v1", "", testToken),
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s status = %d, want 503", req.Method, req.URL.Path, rr.Code)
		}
	}
}

func TestStaticFiles(t *testing.T) {
	env := setupTestEnv(t, testToken)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tts_p1_0.mp3"), []byte("mp3"), 0o644); err != nil {
		t.Fatal(err)
	}
	env.deps.TTSDir = dir
	h := NewAppHandler(env.deps)

	// Audio is served without auth so players can fetch it directly.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tts/tts_p1_0.mp3", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "mp3" {
		t.Errorf("status = %d, body = %q", rr.Code, rr.Body.String())
	}
}
