// Package pipeline drives one documentary job through planning, matching,
// narration, synthesis, and persistence, reporting progress to the job store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/musicdoc/internal/generate"
	"github.com/kalambet/musicdoc/internal/jobs"
	"github.com/kalambet/musicdoc/internal/matching"
	"github.com/kalambet/musicdoc/internal/music"
	"github.com/kalambet/musicdoc/internal/storage"
	"github.com/kalambet/musicdoc/internal/timeline"
)

const (
	// TTSURLPrefix is where the HTTP server exposes narration audio.
	TTSURLPrefix = "/tts/"
	// MockTTSURL is attached to every narration entry when synthesis is mocked.
	MockTTSURL     = "/audio/narration-placeholder.mp3"
	playlistSource = "youtube"
)

// JobTracker receives progress and the terminal outcome of a job.
type JobTracker interface {
	UpdateProgress(id string, u jobs.Update) bool
	CompleteJob(id string, result any) bool
	FailJob(id string, err error) bool
}

// TimelineMatcher resolves track slots to videos.
type TimelineMatcher interface {
	ResolveTimeline(ctx context.Context, slots []music.TrackSlot, threshold float64) matching.TimelineResult
}

// PlaylistStore persists finished documentaries.
type PlaylistStore interface {
	CreatePlaylist(p storage.Playlist) (storage.Playlist, error)
	UpdatePlaylist(id string, u storage.PlaylistUpdate) (storage.Playlist, error)
	SaveNarrationAsset(a storage.NarrationAsset) error
}

// Deps are the collaborators of a Documentary pipeline. Art may be nil.
// Synth may be nil only when Config.MockTTS is set.
type Deps struct {
	Jobs      JobTracker
	Planner   generate.Planner
	Narrator  generate.Narrator
	Art       generate.ArtGenerator
	Synth     generate.Synthesizer
	Matcher   TimelineMatcher
	Playlists PlaylistStore
}

// Config tunes a Documentary pipeline.
type Config struct {
	Threshold float64
	TTSDir    string
	MockTTS   bool
}

// Result is stored on the completed job.
type Result struct {
	PlaylistID string               `json:"playlistId"`
	Playlist   storage.Playlist     `json:"playlist"`
	Matching   []matching.SlotDebug `json:"matching,omitempty"`
}

// Documentary runs generation jobs. Each started job runs on its own
// goroutine; Wait blocks until all of them have finished.
type Documentary struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates a Documentary pipeline.
func New(deps Deps, cfg Config) *Documentary {
	if cfg.Threshold <= 0 {
		cfg.Threshold = matching.DefaultThreshold
	}
	return &Documentary{deps: deps, cfg: cfg, logger: slog.Default()}
}

// Start runs job in the background. ctx should outlive the request that
// created the job; cancelling it fails the job.
func (d *Documentary) Start(ctx context.Context, job jobs.Job) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Run(ctx, job)
	}()
}

// Wait blocks until every started job has reached a terminal state.
func (d *Documentary) Wait() { d.wg.Wait() }

// Run executes job synchronously and records exactly one terminal outcome.
func (d *Documentary) Run(ctx context.Context, job jobs.Job) {
	logger := d.logger.With("job_id", job.ID)
	res, err := d.run(ctx, job, logger)
	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			logger.Warn("documentary failed", "stage", se.Stage.Number, "kind", se.Kind, "error", se.Err)
		}
		d.deps.Jobs.FailJob(job.ID, err)
		return
	}
	d.deps.Jobs.CompleteJob(job.ID, res)
}

func (d *Documentary) run(ctx context.Context, job jobs.Job, logger *slog.Logger) (*Result, error) {
	p := job.Params
	d.report(job.ID, StagePlanning)

	// Album art runs alongside planning and never fails the job.
	var (
		plan *music.Plan
		art  *generate.Art
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		plan, err = d.deps.Planner.Plan(gctx, generate.PlanRequest{
			Topic:               p.Topic,
			Prompt:              p.Prompt,
			NarrationTargetSecs: p.NarrationTargetSecs,
		})
		return err
	})
	if d.deps.Art != nil {
		g.Go(func() error {
			art = d.deps.Art.Generate(gctx, p.Topic, "")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stageErr(StagePlanning, KindUpstreamGeneration, err)
	}
	if plan == nil || len(plan.TrackSlots) == 0 {
		return nil, stageErr(StagePlanning, KindUpstreamGeneration, fmt.Errorf("%w: plan has no track slots", generate.ErrInvalidOutput))
	}
	logger.Info("plan ready", "title", plan.Title, "slots", len(plan.TrackSlots), "album_art", art != nil)

	d.report(job.ID, StagePreparing)
	matched := d.deps.Matcher.ResolveTimeline(ctx, plan.TrackSlots, d.cfg.Threshold)
	if err := ctx.Err(); err != nil {
		return nil, stageErr(StagePreparing, KindUpstreamGeneration, err)
	}

	narration, err := d.deps.Narrator.Narrate(ctx, generate.NarrationRequest{
		Topic:               p.Topic,
		Summary:             plan.Summary,
		Prompt:              p.Prompt,
		TrackSlots:          plan.TrackSlots,
		Selections:          matched.Selections,
		NarrationTargetSecs: p.NarrationTargetSecs,
	})
	if err != nil {
		return nil, stageErr(StagePreparing, KindUpstreamGeneration, err)
	}
	if narration == nil {
		return nil, stageErr(StagePreparing, KindUpstreamGeneration, fmt.Errorf("%w: empty narration", generate.ErrInvalidOutput))
	}
	if err := narration.AlignSegments(plan.TrackSlots); err != nil {
		return nil, stageErr(StagePreparing, KindUpstreamGeneration, fmt.Errorf("%w: %v", generate.ErrInvalidOutput, err))
	}

	doc := timeline.Stitch(plan, narration, matched.Selections)
	record := storage.Playlist{
		OwnerID:  job.UserID,
		Title:    doc.Title,
		Topic:    doc.Topic,
		Summary:  doc.Summary,
		Timeline: doc.Timeline,
		Source:   playlistSource,
	}
	if record.Title == "" {
		record.Title = "Music history: " + p.Topic
	}
	if record.Topic == "" {
		record.Topic = p.Topic
	}
	if art != nil {
		record.NarrationAlbumArtURL = art.URL
	}
	saved, err := d.deps.Playlists.CreatePlaylist(record)
	if err != nil {
		return nil, stageErr(StagePreparing, KindPersistence, err)
	}
	logger.Info("playlist saved", "playlist_id", saved.ID, "songs", timeline.Songs(saved.Timeline))

	d.report(job.ID, StageNarration)
	if err := d.narrate(ctx, job.ID, saved.ID, saved.Timeline); err != nil {
		return nil, err
	}

	d.report(job.ID, StageFinalize)
	update := storage.PlaylistUpdate{Timeline: saved.Timeline}
	if saved.NarrationAlbumArtURL != "" {
		update.NarrationAlbumArtURL = &saved.NarrationAlbumArtURL
	}
	final, err := d.deps.Playlists.UpdatePlaylist(saved.ID, update)
	if err != nil {
		return nil, stageErr(StageFinalize, KindPersistence, err)
	}

	d.report(job.ID, StageDone)
	return &Result{PlaylistID: final.ID, Playlist: final, Matching: matched.Debug}, nil
}

// narrate synthesizes audio for every narration entry with text and sets
// its TTS URL in place. Any synthesis failure fails the job.
func (d *Documentary) narrate(ctx context.Context, jobID, playlistID string, entries []timeline.Entry) error {
	var targets []*timeline.Narration
	for _, e := range entries {
		if e.Narration != nil && strings.TrimSpace(e.Narration.Text) != "" {
			targets = append(targets, e.Narration)
		}
	}
	if len(targets) == 0 {
		return nil
	}
	if !d.cfg.MockTTS {
		if d.deps.Synth == nil {
			return stageErr(StageNarration, KindSynthesis, errors.New("no speech synthesizer configured"))
		}
		if err := os.MkdirAll(d.cfg.TTSDir, 0o755); err != nil {
			return stageErr(StageNarration, KindPersistence, fmt.Errorf("creating tts directory: %w", err))
		}
	}

	n := len(targets)
	for idx, target := range targets {
		d.deps.Jobs.UpdateProgress(jobID, jobs.Update{
			Stage:      StageNarration.Number,
			StageLabel: StageNarration.Label,
			Progress:   narrationProgress(idx, n),
			Detail:     fmt.Sprintf("Generating track %d/%d", idx+1, n),
		})
		if d.cfg.MockTTS {
			target.TTSURL = MockTTSURL
			continue
		}

		audio, err := d.deps.Synth.Synthesize(ctx, strings.TrimSpace(target.Text))
		if err != nil {
			return stageErr(StageNarration, KindSynthesis, fmt.Errorf("narration %d/%d: %w", idx+1, n, err))
		}
		name := TTSFileName(playlistID, idx)
		if err := os.WriteFile(filepath.Join(d.cfg.TTSDir, name), audio, 0o644); err != nil {
			return stageErr(StageNarration, KindPersistence, fmt.Errorf("writing %s: %w", name, err))
		}
		target.TTSURL = TTSURLPrefix + name
		if err := d.deps.Playlists.SaveNarrationAsset(storage.NarrationAsset{
			PlaylistID: playlistID,
			Index:      idx,
			FileName:   name,
			URL:        target.TTSURL,
			Bytes:      int64(len(audio)),
		}); err != nil {
			d.logger.Warn("failed to record narration asset", "playlist_id", playlistID, "file", name, "error", err)
		}
	}
	return nil
}

func (d *Documentary) report(jobID string, s Stage) {
	u := jobs.Update{
		Stage:      s.Number,
		StageLabel: s.Label,
		Progress:   s.Progress,
		Detail:     s.Detail,
	}
	if s == StagePlanning {
		u.Status = jobs.StatusRunning
	}
	d.deps.Jobs.UpdateProgress(jobID, u)
}

// narrationProgress spreads synthesis over 70..95.
func narrationProgress(idx, n int) int {
	if n <= 0 {
		return 95
	}
	return StageNarration.Progress + int(math.Round(float64(idx)/float64(n)*25))
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// TTSFileName is the audio file name for narration idx of a playlist.
func TTSFileName(playlistID string, idx int) string {
	return fmt.Sprintf("tts_%s_%d.mp3", unsafeFileChars.ReplaceAllString(playlistID, "-"), idx)
}
