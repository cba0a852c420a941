package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/musicdoc/internal/generate"
	"github.com/kalambet/musicdoc/internal/jobs"
	"github.com/kalambet/musicdoc/internal/lookup"
	"github.com/kalambet/musicdoc/internal/music"
	"github.com/kalambet/musicdoc/internal/storage"
)

// MCPDeps holds dependencies for the MCP server. Searcher may be nil.
type MCPDeps struct {
	Jobs      JobStore
	Runner    JobRunner
	Playlists PlaylistStore
	Searcher  lookup.Searcher
	// Documentarian backs compose_documentary; the tool reports an error when nil.
	Documentarian generate.Documentarian
	BaseContext   context.Context
	// UserID owns jobs created over MCP; DefaultUserID when empty.
	UserID string
}

func (d MCPDeps) user() string {
	if d.UserID != "" {
		return d.UserID
	}
	return DefaultUserID
}

// NewMCPServer creates an MCP server with the documentary tools and
// resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"musicdoc",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("musicdoc generates narrated music documentaries: a chronological playlist of songs with spoken narration between them."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("create_job",
			mcp.WithDescription("Start generating a music documentary for a topic. Returns the job id; poll it with get_job."),
			mcp.WithString("topic", mcp.Description("Band, artist, genre or era"), mcp.Required()),
			mcp.WithString("prompt", mcp.Description("Optional extra instructions for the planner and narrator")),
			mcp.WithNumber("narration_target_secs", mcp.Description("Approximate length of each narration segment in seconds")),
		),
		mcpCreateJob(deps),
	)

	s.AddTool(
		mcp.NewTool("get_job",
			mcp.WithDescription("Return the current status, stage and progress of a generation job."),
			mcp.WithString("job_id", mcp.Description("Job id returned by create_job"), mcp.Required()),
		),
		mcpGetJob(deps),
	)

	s.AddTool(
		mcp.NewTool("list_jobs",
			mcp.WithDescription("List generation jobs of the current user, newest first."),
		),
		mcpListJobs(deps),
	)

	s.AddTool(
		mcp.NewTool("get_playlist",
			mcp.WithDescription("Return a finished documentary playlist with its timeline."),
			mcp.WithString("playlist_id", mcp.Description("Playlist id from a completed job"), mcp.Required()),
		),
		mcpGetPlaylist(deps),
	)

	s.AddTool(
		mcp.NewTool("compose_documentary",
			mcp.WithDescription("Write a complete documentary timeline in one step. Songs are not matched to videos and nothing is saved."),
			mcp.WithString("topic", mcp.Description("Band, artist, genre or era"), mcp.Required()),
			mcp.WithString("prompt", mcp.Description("Optional extra instructions")),
			mcp.WithNumber("narration_target_secs", mcp.Description("Approximate length of each narration in seconds")),
		),
		mcpComposeDocumentary(deps),
	)

	s.AddTool(
		mcp.NewTool("search_videos",
			mcp.WithDescription("Search the configured video source and return raw candidates."),
			mcp.WithString("query", mcp.Description("Free text query, e.g. \"Yesterday\" The Beatles"), mcp.Required()),
		),
		mcpSearchVideos(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"musicdoc://stats",
			"Job Statistics",
			mcp.WithResourceDescription("Counts of jobs by status"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpCreateJob(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topic, err := req.RequireString("topic")
		if err != nil {
			return mcpError("topic is required"), nil
		}
		params := jobs.Params{
			Topic:               strings.TrimSpace(topic),
			Prompt:              req.GetString("prompt", ""),
			NarrationTargetSecs: req.GetInt("narration_target_secs", 0),
		}
		if err := music.Validate(params); err != nil {
			return mcpError(err.Error()), nil
		}

		job, err := deps.Jobs.CreateJob(deps.user(), params)
		if err != nil {
			var limitErr *jobs.LimitError
			if errors.As(err, &limitErr) {
				return mcpError(fmt.Sprintf("too many active jobs: %v", err)), nil
			}
			return mcpError(fmt.Sprintf("failed to create job: %v", err)), nil
		}

		base := deps.BaseContext
		if base == nil {
			base = context.Background()
		}
		deps.Runner.Start(base, job)
		return mcpText(fmt.Sprintf("Started job %s for %q", job.ID, params.Topic)), nil
	}
}

func mcpGetJob(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("job_id")
		if err != nil {
			return mcpError("job_id is required"), nil
		}
		job, err := deps.Jobs.GetJob(id)
		if err != nil {
			return mcpError(fmt.Sprintf("job %s: %v", id, err)), nil
		}
		return mcpJSON(job)
	}
}

func mcpListJobs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpJSON(deps.Jobs.GetUserJobs(deps.user()))
	}
}

func mcpGetPlaylist(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("playlist_id")
		if err != nil {
			return mcpError("playlist_id is required"), nil
		}
		p, err := deps.Playlists.GetPlaylist(id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("playlist %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load playlist: %v", err)), nil
		}
		return mcpJSON(p)
	}
}

func mcpComposeDocumentary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Documentarian == nil {
			return mcpError("documentary generation is not configured"), nil
		}
		topic, err := req.RequireString("topic")
		if err != nil || strings.TrimSpace(topic) == "" {
			return mcpError("topic is required"), nil
		}
		doc, err := deps.Documentarian.Compose(ctx, generate.PlanRequest{
			Topic:               strings.TrimSpace(topic),
			Prompt:              req.GetString("prompt", ""),
			NarrationTargetSecs: req.GetInt("narration_target_secs", 0),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to generate documentary: %v", err)), nil
		}
		return mcpJSON(doc)
	}
}

func mcpSearchVideos(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Searcher == nil {
			return mcpError("video lookup is not configured"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		videos, err := deps.Searcher.Search(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(videos) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(videos)
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Jobs.Stats())
		if err != nil {
			return nil, fmt.Errorf("marshaling stats: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
