package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kalambet/musicdoc/internal/api"
	"github.com/kalambet/musicdoc/internal/config"
	"github.com/kalambet/musicdoc/internal/jobs"
	"github.com/kalambet/musicdoc/internal/storage"
	"github.com/kalambet/musicdoc/internal/timeline"
)

// --- generate ---

var generateCmd = &cobra.Command{
	Use:   "generate <topic>",
	Short: "Start a documentary generation job",
	Long: `Start a documentary generation job on the running server.

Examples:
  musicdoc generate "Miles Davis"
  musicdoc generate "Britpop" --prompt "focus on 1994-1997" --watch
  musicdoc generate "Motown" --narration-secs 20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, _ := cmd.Flags().GetString("prompt")
		secs, _ := cmd.Flags().GetInt("narration-secs")
		watch, _ := cmd.Flags().GetBool("watch")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		job, err := createJob(cmd.Context(), client, jobs.Params{
			Topic:               strings.TrimSpace(args[0]),
			Prompt:              prompt,
			NarrationTargetSecs: secs,
		})
		if err != nil {
			return err
		}
		printSuccess("Started job %s", job.ID)
		if !watch {
			printStep("Follow it with: musicdoc jobs watch %s", job.ID)
			return nil
		}
		return followJob(cmd.Context(), client, job.ID, os.Stdout)
	},
}

func init() {
	generateCmd.Flags().String("prompt", "", "extra instructions for the planner and narrator")
	generateCmd.Flags().Int("narration-secs", 0, "approximate length of each narration segment")
	generateCmd.Flags().Bool("watch", false, "follow progress until the job finishes")
}

func createJob(ctx context.Context, client *apiClient, params jobs.Params) (jobs.Job, error) {
	if params.Topic == "" {
		return jobs.Job{}, fmt.Errorf("topic is required")
	}
	resp, err := client.post(ctx, "/api/jobs", params)
	if err != nil {
		return jobs.Job{}, err
	}
	var result struct {
		Job jobs.Job `json:"job"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return jobs.Job{}, err
	}
	return result.Job, nil
}

// followJob streams events to w and reports the outcome.
func followJob(ctx context.Context, client *apiClient, jobID string, w io.Writer) error {
	final, err := client.watch(ctx, jobID, func(ev jobs.Event) { writeEvent(w, ev) })
	if err != nil {
		return err
	}
	if final.Type == jobs.EventError {
		return fmt.Errorf("job %s failed: %s", jobID, final.Error)
	}
	if id := resultPlaylistID(final.Result); id != "" {
		printSuccess("Playlist %s is ready: musicdoc playlists show %s", id, id)
	}
	return nil
}

func resultPlaylistID(result any) string {
	m, ok := result.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := m["playlistId"].(string)
	return id
}

// --- jobs ---

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect generation jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var result struct {
			Jobs []jobs.Job `json:"jobs"`
		}
		if err := client.getJSON(cmd.Context(), "/api/jobs", &result); err != nil {
			return err
		}
		if len(result.Jobs) == 0 {
			printStep("No jobs yet")
			return nil
		}
		fmt.Println(jobsTable(result.Jobs))
		return nil
	},
}

func jobsTable(list []jobs.Job) string {
	rows := make([][]string, 0, len(list))
	for _, j := range list {
		rows = append(rows, []string{
			j.ID,
			j.Params.Topic,
			string(j.Status),
			strconv.Itoa(j.Progress) + "%",
			j.StageLabel,
			humanize.Time(j.CreatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "Topic", "Status", "Progress", "Stage", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	)
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a job as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var result struct {
			Job json.RawMessage `json:"job"`
		}
		if err := client.getJSON(cmd.Context(), "/api/jobs/"+url.PathEscape(args[0]), &result); err != nil {
			return err
		}
		return printJSON(os.Stdout, result.Job)
	},
}

var jobsWatchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Follow a job's progress until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return followJob(cmd.Context(), client, url.PathEscape(args[0]), os.Stdout)
	},
}

func init() {
	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd, jobsWatchCmd)
}

// --- playlists ---

var playlistsCmd = &cobra.Command{
	Use:   "playlists",
	Short: "Browse saved playlists",
}

var playlistsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List playlists of an owner, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		limit, _ := cmd.Flags().GetInt("limit")
		if owner == "" {
			owner = asUserID
		}
		if owner == "" {
			owner = api.DefaultUserID
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := fmt.Sprintf("/api/users/%s/playlists?limit=%d", url.PathEscape(owner), limit)
		var result struct {
			Playlists []storage.Playlist `json:"playlists"`
		}
		if err := client.getJSON(cmd.Context(), path, &result); err != nil {
			return err
		}
		if len(result.Playlists) == 0 {
			printStep("No playlists for %s", owner)
			return nil
		}
		fmt.Println(playlistsTable(result.Playlists))
		return nil
	},
}

func playlistsTable(list []storage.Playlist) string {
	rows := make([][]string, 0, len(list))
	for _, p := range list {
		rows = append(rows, []string{
			p.ID,
			p.Title,
			strconv.Itoa(timeline.Songs(p.Timeline)),
			humanize.Time(p.CreatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Songs", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	)
}

var playlistsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a playlist's timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var result struct {
			Playlist storage.Playlist `json:"playlist"`
		}
		if err := client.getJSON(cmd.Context(), "/api/playlists/"+url.PathEscape(args[0]), &result); err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, result.Playlist)
		}
		writePlaylist(os.Stdout, result.Playlist)
		return nil
	},
}

func writePlaylist(w io.Writer, p storage.Playlist) {
	fmt.Fprintln(w, colorize(colorBold, p.Title))
	if p.Summary != "" {
		fmt.Fprintln(w, p.Summary)
	}
	rows := make([][]string, 0, len(p.Timeline))
	for i, e := range p.Timeline {
		switch {
		case e.Song != nil:
			video, conf := "not found", ""
			if e.Song.YouTube.Found() {
				video = *e.Song.YouTube.VideoID
				conf = strconv.FormatFloat(e.Song.YouTube.MatchedConfidence, 'f', 2, 64)
			}
			rows = append(rows, []string{strconv.Itoa(i + 1), "song", e.Song.Title + " · " + e.Song.Artist, video, conf})
		case e.Narration != nil:
			rows = append(rows, []string{strconv.Itoa(i + 1), "narration", e.Narration.Title, e.Narration.TTSURL, ""})
		}
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Type", "Title", "Source", "Match"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
	))
}

func init() {
	playlistsListCmd.Flags().String("owner", "", "owner id (defaults to --user)")
	playlistsListCmd.Flags().Int("limit", 20, "maximum number of playlists")
	playlistsShowCmd.Flags().Bool("json", false, "print the raw playlist JSON")
	playlistsCmd.AddCommand(playlistsListCmd, playlistsShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printWarning("config does not validate: %v", err)
		}
		rows := [][]string{}
		for _, k := range config.ShowAll(cfg) {
			rows = append(rows, []string{k.Key, k.Value, k.EnvVar})
		}
		fmt.Println(renderTable([]string{"Key", "Value", "Env"}, rows, nil))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
