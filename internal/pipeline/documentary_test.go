package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/musicdoc/internal/generate"
	"github.com/kalambet/musicdoc/internal/jobs"
	"github.com/kalambet/musicdoc/internal/lookup"
	"github.com/kalambet/musicdoc/internal/matching"
	"github.com/kalambet/musicdoc/internal/music"
	"github.com/kalambet/musicdoc/internal/storage"
	"github.com/kalambet/musicdoc/internal/timeline"
)

type mockSearcher struct {
	searchFn func(ctx context.Context, query string) ([]lookup.Video, error)
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]lookup.Video, error) {
	return m.searchFn(ctx, query)
}

type mockPlanner struct {
	planFn func(ctx context.Context, req generate.PlanRequest) (*music.Plan, error)
}

func (m *mockPlanner) Plan(ctx context.Context, req generate.PlanRequest) (*music.Plan, error) {
	return m.planFn(ctx, req)
}

type mockNarrator struct {
	narrateFn func(ctx context.Context, req generate.NarrationRequest) (*music.Narration, error)
}

func (m *mockNarrator) Narrate(ctx context.Context, req generate.NarrationRequest) (*music.Narration, error) {
	return m.narrateFn(ctx, req)
}

type mockArt struct {
	art *generate.Art
}

func (m *mockArt) Generate(context.Context, string, string) *generate.Art { return m.art }

type mockSynth struct {
	mu     sync.Mutex
	calls  []string
	failAt int
}

func (m *mockSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)
	if m.failAt > 0 && len(m.calls) == m.failAt {
		return nil, errors.New("tts quota")
	}
	return []byte("mp3:" + text), nil
}

// searchByTitle answers every query with a perfectly matching video.
func searchByTitle() *mockSearcher {
	return &mockSearcher{searchFn: func(_ context.Context, query string) ([]lookup.Video, error) {
		title := strings.Trim(strings.SplitN(query, `" `, 2)[0], `"`)
		return []lookup.Video{{ID: "vid-" + strings.ReplaceAll(title, " ", "-"), Title: title, ChannelTitle: "Blur Artist - Topic"}}, nil
	}}
}

type fixture struct {
	store     *jobs.Store
	playlists *storage.Store
	synth     *mockSynth
	deps      Deps
	cfg       Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ps, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { ps.Close() })

	store := jobs.NewStore(jobs.Options{})
	t.Cleanup(store.Shutdown)

	synth := &mockSynth{}
	f := &fixture{store: store, playlists: ps, synth: synth}
	f.deps = Deps{
		Jobs:      store,
		Planner:   generate.MockPlanner{},
		Narrator:  generate.MockNarrator{},
		Art:       &mockArt{art: &generate.Art{URL: "/album-art/art_x.png"}},
		Synth:     synth,
		Matcher:   matching.NewMatcher(searchByTitle()),
		Playlists: ps,
	}
	f.cfg = Config{Threshold: 0.8, TTSDir: filepath.Join(t.TempDir(), "tts")}
	return f
}

func (f *fixture) createJob(t *testing.T) jobs.Job {
	t.Helper()
	job, err := f.store.CreateJob("anonymous", jobs.Params{Topic: "Blur"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

// recordProgress subscribes to the job and records every progress snapshot.
func recordProgress(t *testing.T, store *jobs.Store, id string) func() []jobs.Job {
	t.Helper()
	var mu sync.Mutex
	var seen []jobs.Job
	_, unsubscribe, ok := store.Subscribe(id, jobs.Listener{OnProgress: func(j jobs.Job) {
		mu.Lock()
		seen = append(seen, j)
		mu.Unlock()
	}})
	if !ok {
		t.Fatalf("Subscribe(%s) failed", id)
	}
	t.Cleanup(unsubscribe)
	return func() []jobs.Job {
		mu.Lock()
		defer mu.Unlock()
		return append([]jobs.Job(nil), seen...)
	}
}

func TestRun_CompletesJob(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t)
	progress := recordProgress(t, f.store, job.ID)

	New(f.deps, f.cfg).Run(context.Background(), job)

	got, err := f.store.GetJob(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != jobs.StatusCompleted || got.Progress != 100 || got.Stage != 5 {
		t.Fatalf("job = %+v, want completed at stage 5", got)
	}
	res, ok := got.Result.(*Result)
	if !ok {
		t.Fatalf("Result type = %T, want *Result", got.Result)
	}
	if res.PlaylistID == "" || res.PlaylistID != res.Playlist.ID {
		t.Errorf("result ids = %q / %q", res.PlaylistID, res.Playlist.ID)
	}
	if len(res.Matching) != 5 {
		t.Errorf("len(Matching) = %d, want 5", len(res.Matching))
	}

	saved, err := f.playlists.GetPlaylist(res.PlaylistID)
	if err != nil {
		t.Fatalf("GetPlaylist: %v", err)
	}
	if saved.OwnerID != "anonymous" || saved.Source != "youtube" || saved.NarrationAlbumArtURL != "/album-art/art_x.png" {
		t.Errorf("saved = %+v", saved)
	}
	if len(saved.Timeline) != 12 {
		t.Fatalf("len(Timeline) = %d, want 12", len(saved.Timeline))
	}
	idx := 0
	for _, e := range saved.Timeline {
		switch e.Kind() {
		case timeline.KindNarration:
			want := TTSURLPrefix + TTSFileName(res.PlaylistID, idx)
			if e.Narration.TTSURL != want {
				t.Errorf("narration %d TTSURL = %q, want %q", idx, e.Narration.TTSURL, want)
			}
			if _, err := os.Stat(filepath.Join(f.cfg.TTSDir, TTSFileName(res.PlaylistID, idx))); err != nil {
				t.Errorf("audio file %d missing: %v", idx, err)
			}
			idx++
		case timeline.KindSong:
			if !e.Song.YouTube.Found() {
				t.Errorf("song %s has no video", e.Song.SlotID)
			}
		}
	}
	if idx != 7 || len(f.synth.calls) != 7 {
		t.Errorf("narrations = %d, synth calls = %d, want 7", idx, len(f.synth.calls))
	}

	assets, err := f.playlists.ListNarrationAssets(res.PlaylistID)
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 7 {
		t.Errorf("len(assets) = %d, want 7", len(assets))
	}

	events := progress()
	if len(events) == 0 || events[0].Stage != 1 || events[0].Progress != 5 || events[0].Status != jobs.StatusRunning {
		t.Fatalf("first progress = %+v", events[0])
	}
	last := 0
	for _, e := range events {
		if e.Progress < last {
			t.Errorf("progress went backwards: %d after %d", e.Progress, last)
		}
		last = e.Progress
	}
	var details []string
	for _, e := range events {
		if e.Stage == 3 {
			details = append(details, e.Detail)
		}
	}
	if len(details) != 8 || details[1] != "Generating track 1/7" || details[7] != "Generating track 7/7" {
		t.Errorf("stage 3 details = %v", details)
	}
}

func TestRun_MockTTS(t *testing.T) {
	f := newFixture(t)
	f.cfg.MockTTS = true
	f.deps.Synth = nil
	job := f.createJob(t)

	New(f.deps, f.cfg).Run(context.Background(), job)

	got, _ := f.store.GetJob(job.ID)
	if got.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", got.Status, got.Error)
	}
	for _, e := range got.Result.(*Result).Playlist.Timeline {
		if e.Narration != nil && e.Narration.TTSURL != MockTTSURL {
			t.Errorf("TTSURL = %q, want %q", e.Narration.TTSURL, MockTTSURL)
		}
	}
	if _, err := os.Stat(f.cfg.TTSDir); !os.IsNotExist(err) {
		t.Errorf("mock tts created %s", f.cfg.TTSDir)
	}
}

func TestRun_PlanFailureFailsJob(t *testing.T) {
	f := newFixture(t)
	f.deps.Planner = &mockPlanner{planFn: func(context.Context, generate.PlanRequest) (*music.Plan, error) {
		return nil, generate.ErrInvalidOutput
	}}
	job := f.createJob(t)

	New(f.deps, f.cfg).Run(context.Background(), job)

	got, _ := f.store.GetJob(job.ID)
	if got.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.HasPrefix(got.Error, "planning tracks: ") {
		t.Errorf("Error = %q", got.Error)
	}
	if n, _ := f.playlists.CountPlaylists(); n != 0 {
		t.Errorf("playlists = %d, want 0", n)
	}
}

func TestRun_NarrationFailureFailsJob(t *testing.T) {
	f := newFixture(t)
	f.deps.Narrator = &mockNarrator{narrateFn: func(context.Context, generate.NarrationRequest) (*music.Narration, error) {
		return nil, errors.New("upstream 500")
	}}
	job := f.createJob(t)

	New(f.deps, f.cfg).Run(context.Background(), job)

	got, _ := f.store.GetJob(job.ID)
	if got.Status != jobs.StatusFailed || !strings.Contains(got.Error, "upstream 500") {
		t.Errorf("job = %+v", got)
	}
}

func TestRun_NarrationNotCoveringSlotsFailsJob(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(n *music.Narration)
	}{
		{"unknown slot ids", func(n *music.Narration) {
			for i := range n.SongSegments {
				n.SongSegments[i].SlotID = fmt.Sprintf("chapter-%d", i)
			}
		}},
		{"missing segment", func(n *music.Narration) {
			n.SongSegments = n.SongSegments[:len(n.SongSegments)-1]
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.deps.Narrator = &mockNarrator{narrateFn: func(ctx context.Context, req generate.NarrationRequest) (*music.Narration, error) {
				n, err := generate.MockNarrator{}.Narrate(ctx, req)
				if err != nil {
					return nil, err
				}
				tt.mutate(n)
				return n, nil
			}}
			job := f.createJob(t)

			New(f.deps, f.cfg).Run(context.Background(), job)

			got, _ := f.store.GetJob(job.ID)
			if got.Status != jobs.StatusFailed {
				t.Fatalf("status = %s, want failed", got.Status)
			}
			if !strings.HasPrefix(got.Error, "preparing playlist: invalid generator output") {
				t.Errorf("Error = %q", got.Error)
			}
			if n, _ := f.playlists.CountPlaylists(); n != 0 {
				t.Errorf("playlists = %d, want 0", n)
			}
			if len(f.synth.calls) != 0 {
				t.Errorf("synth calls = %d, want 0", len(f.synth.calls))
			}
		})
	}
}

func TestRun_NarrationSegmentsReordered(t *testing.T) {
	f := newFixture(t)
	f.deps.Narrator = &mockNarrator{narrateFn: func(ctx context.Context, req generate.NarrationRequest) (*music.Narration, error) {
		n, err := generate.MockNarrator{}.Narrate(ctx, req)
		if err != nil {
			return nil, err
		}
		segs := n.SongSegments
		for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
			segs[i], segs[j] = segs[j], segs[i]
		}
		return n, nil
	}}
	job := f.createJob(t)

	New(f.deps, f.cfg).Run(context.Background(), job)

	got, _ := f.store.GetJob(job.ID)
	if got.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", got.Status, got.Error)
	}
	entries := got.Result.(*Result).Playlist.Timeline
	if len(entries) != 12 {
		t.Fatalf("len(timeline) = %d, want 12", len(entries))
	}
	for i := 1; i < len(entries)-1; i += 2 {
		want := fmt.Sprintf("slot-%d", (i+1)/2)
		if e := entries[i]; e.Narration == nil || e.Narration.SlotID != want {
			t.Errorf("entry %d = %+v, want narration for %s", i, e, want)
		}
		if e := entries[i+1]; e.Song == nil || e.Song.SlotID != want {
			t.Errorf("entry %d = %+v, want song for %s", i+1, e, want)
		}
	}
}

func TestRun_SynthesisFailureFailsJob(t *testing.T) {
	f := newFixture(t)
	f.synth.failAt = 3
	job := f.createJob(t)

	New(f.deps, f.cfg).Run(context.Background(), job)

	got, _ := f.store.GetJob(job.ID)
	if got.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.Error, "narration 3/7: tts quota") {
		t.Errorf("Error = %q", got.Error)
	}
	if len(f.synth.calls) != 3 {
		t.Errorf("synth calls = %d, want 3", len(f.synth.calls))
	}
}

func TestRun_MatchingDegradedStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.deps.Matcher = matching.NewMatcher(&mockSearcher{searchFn: func(context.Context, string) ([]lookup.Video, error) {
		return nil, lookup.ErrQuotaExceeded
	}})
	f.deps.Art = nil
	job := f.createJob(t)

	New(f.deps, f.cfg).Run(context.Background(), job)

	got, _ := f.store.GetJob(job.ID)
	if got.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", got.Status, got.Error)
	}
	res := got.Result.(*Result)
	for _, e := range res.Playlist.Timeline {
		if e.Song != nil && (e.Song.YouTube.Found() || e.Song.YouTube.MatchedConfidence != 0) {
			t.Errorf("song %s = %+v, want no video", e.Song.SlotID, e.Song.YouTube)
		}
	}
	if res.Playlist.NarrationAlbumArtURL != "" {
		t.Errorf("art url = %q, want empty", res.Playlist.NarrationAlbumArtURL)
	}
}

func TestStart_CancelledContextFailsJob(t *testing.T) {
	f := newFixture(t)
	f.deps.Planner = &mockPlanner{planFn: func(ctx context.Context, _ generate.PlanRequest) (*music.Plan, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	job := f.createJob(t)

	ctx, cancel := context.WithCancel(context.Background())
	d := New(f.deps, f.cfg)
	d.Start(ctx, job)
	cancel()
	d.Wait()

	got, _ := f.store.GetJob(job.ID)
	if got.Status != jobs.StatusFailed || !strings.Contains(got.Error, "context canceled") {
		t.Errorf("job = %+v", got)
	}
}

func TestStageError(t *testing.T) {
	base := errors.New("boom")
	err := stageErr(StageNarration, KindSynthesis, base)

	var se *StageError
	if !errors.As(err, &se) {
		t.Fatal("errors.As failed")
	}
	if se.Kind != KindSynthesis || se.Stage.Number != 3 {
		t.Errorf("StageError = %+v", se)
	}
	if !errors.Is(err, base) {
		t.Error("errors.Is(base) = false")
	}
	if err.Error() != "generating narration: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestTTSFileName(t *testing.T) {
	if got := TTSFileName("ab/c.d_e-f", 2); got != "tts_ab-c-d_e-f_2.mp3" {
		t.Errorf("TTSFileName = %q", got)
	}
}

func TestNarrationProgress(t *testing.T) {
	tests := []struct{ idx, n, want int }{
		{0, 7, 70}, {1, 7, 74}, {6, 7, 91}, {0, 0, 95}, {1, 2, 83},
	}
	for _, tt := range tests {
		if got := narrationProgress(tt.idx, tt.n); got != tt.want {
			t.Errorf("narrationProgress(%d, %d) = %d, want %d", tt.idx, tt.n, got, tt.want)
		}
	}
}
