package generate

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/kalambet/musicdoc/internal/llm"
)

const (
	artSize    = "1024x1024"
	artQuality = "medium"
	// ArtURLPrefix is where the HTTP server exposes stored album art.
	ArtURLPrefix = "/album-art/"
)

// AlbumArtGenerator creates one cover image per documentary. Images are
// stored under dir and referenced by ArtURLPrefix; a data URL is used when
// the file cannot be written.
type AlbumArtGenerator struct {
	images llm.ImageGenerator
	model  string
	dir    string
	logger *slog.Logger
}

// NewAlbumArtGenerator creates an AlbumArtGenerator. A nil images backend
// makes Generate always return nil.
func NewAlbumArtGenerator(images llm.ImageGenerator, model, dir string) *AlbumArtGenerator {
	return &AlbumArtGenerator{images: images, model: model, dir: dir, logger: slog.Default()}
}

func (g *AlbumArtGenerator) Generate(ctx context.Context, topic, prompt string) *Art {
	if g.images == nil {
		g.logger.Debug("album art skipped: no image backend")
		return nil
	}
	artPrompt := albumArtPrompt(topic, prompt)

	img, err := g.images.GenerateImage(ctx, llm.ImageRequest{
		Model:   g.model,
		Prompt:  artPrompt,
		Size:    artSize,
		Quality: artQuality,
	})
	if err != nil {
		g.logger.Warn("album art generation failed", "error", err)
		return nil
	}

	url, err := g.store(img)
	if err != nil {
		g.logger.Warn("failed to store album art, using data url", "error", err)
		url = "data:image/png;base64," + base64.StdEncoding.EncodeToString(img)
	}
	return &Art{URL: url, Prompt: artPrompt}
}

func (g *AlbumArtGenerator) store(img []byte) (string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", err
	}
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	name := "art_" + id + ".png"
	if err := os.WriteFile(filepath.Join(g.dir, name), img, 0o644); err != nil {
		return "", err
	}
	g.logger.Debug("album art stored", "file", name)
	return ArtURLPrefix + name, nil
}
