package imaging

import (
	"context"
	"log/slog"
	"time"

	"storyboard/internal/assets"
	"storyboard/internal/document"
	"storyboard/internal/imagegen"
	"storyboard/internal/logging"
	"storyboard/internal/services"
)

const defaultItemDelay = 1500 * time.Millisecond

// ImageProvider is the generation surface the batch loop depends on.
type ImageProvider interface {
	Generate(ctx context.Context, prompt string) (imagegen.Generation, error)
	Model() string
}

// ImageArchiver makes a transient provider result durable.
type ImageArchiver interface {
	Archive(ctx context.Context, projectID, sceneID, sourceURL string, prov assets.Provenance) (assets.Result, error)
}

// SceneImage is one completed item in a batch.
type SceneImage struct {
	SceneID  string `json:"scene_id"`
	URL      string `json:"url"`
	Fallback bool   `json:"fallback,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

// ItemError is one per-scene failure inside a batch.
type ItemError struct {
	SceneID string `json:"scene_id"`
	Message string `json:"message"`
}

// BulkResult summarizes a batch: total and successful counts plus per-item
// errors, never a bare boolean.
type BulkResult struct {
	Total            int          `json:"total"`
	SuccessfulScenes int          `json:"successful_scenes"`
	Results          []SceneImage `json:"results"`
	Errors           []ItemError  `json:"errors"`
	Canceled         bool         `json:"canceled,omitempty"`
}

// Success reports whether every requested scene received a usable image URL.
func (r BulkResult) Success() bool {
	return r.Total > 0 && r.SuccessfulScenes == r.Total && !r.Canceled
}

// Progress is emitted before each item starts and after it completes. Images
// always holds the cumulative list of completed items so a consumer can show
// a gallery in progress rather than a bare percentage.
type Progress struct {
	Completed    int          `json:"completed"`
	Total        int          `json:"total"`
	CurrentScene string       `json:"current_scene,omitempty"`
	Images       []SceneImage `json:"images"`
}

// ProgressFunc consumes progress events. A nil func disables reporting.
type ProgressFunc func(Progress)

// Generator runs image generation batches.
type Generator struct {
	provider     ImageProvider
	archiver     ImageArchiver
	providerName string
	itemDelay    time.Duration
	logger       *slog.Logger
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration)
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithItemDelay overrides the pause inserted between items.
func WithItemDelay(delay time.Duration) GeneratorOption {
	return func(g *Generator) {
		if delay >= 0 {
			g.itemDelay = delay
		}
	}
}

// WithProviderName overrides the provider label recorded in frame metadata.
func WithProviderName(name string) GeneratorOption {
	return func(g *Generator) {
		if name != "" {
			g.providerName = name
		}
	}
}

// WithSleeper overrides how inter-item delays are performed (useful for
// tests).
func WithSleeper(sleep func(ctx context.Context, d time.Duration)) GeneratorOption {
	return func(g *Generator) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// WithClock overrides the timestamp source used in frame metadata.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGenerator constructs an image batch generator.
func NewGenerator(provider ImageProvider, archiver ImageArchiver, logger *slog.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	generator := &Generator{
		provider:     provider,
		archiver:     archiver,
		providerName: "openai",
		itemDelay:    defaultItemDelay,
		logger:       logger.With(logging.String(logging.FieldComponent, "imaging")),
		now:          time.Now,
		sleep:        sleepWithContext,
	}
	for _, opt := range opts {
		opt(generator)
	}
	return generator
}

// GenerateAll runs one image generation per requested scene (default: all
// scenes carrying a frame prompt), strictly in order, merging each result
// onto a copy of the document as it lands. A provider failure is isolated to
// its scene; cancellation stops before the next item and the completed
// subset's merges are retained.
func (g *Generator) GenerateAll(ctx context.Context, doc *document.Document, sceneIDs []string, onProgress ProgressFunc) (*document.Document, BulkResult, error) {
	var result BulkResult
	if doc == nil {
		return nil, result, services.Wrap(services.ErrValidation, "imaging", "generate", "nil document", nil)
	}
	if len(sceneIDs) == 0 {
		sceneIDs = doc.SceneIDs()
	}
	result.Total = len(sceneIDs)
	if result.Total == 0 {
		return nil, result, services.Wrap(services.ErrValidation, "imaging", "generate", "document has no scenes", nil)
	}

	working, err := doc.Clone()
	if err != nil {
		return nil, result, err
	}

	completed := 0
	for index, sceneID := range sceneIDs {
		if ctx.Err() != nil {
			g.logger.WarnContext(ctx, "image batch canceled",
				logging.String(logging.FieldProjectID, working.ProjectID),
				logging.Int("completed", completed),
				logging.Int("total", result.Total))
			result.Canceled = true
			for _, remaining := range sceneIDs[index:] {
				result.Errors = append(result.Errors, ItemError{SceneID: remaining, Message: "batch canceled before this scene started"})
			}
			break
		}

		emit(onProgress, Progress{
			Completed:    completed,
			Total:        result.Total,
			CurrentScene: sceneID,
			Images:       append([]SceneImage(nil), result.Results...),
		})

		g.generateOne(ctx, working, sceneID, &result)
		completed++

		emit(onProgress, Progress{
			Completed: completed,
			Total:     result.Total,
			Images:    append([]SceneImage(nil), result.Results...),
		})

		if index < len(sceneIDs)-1 {
			g.sleep(ctx, g.itemDelay)
		}
	}

	g.logger.InfoContext(ctx, "image generation finished",
		logging.String(logging.FieldProjectID, working.ProjectID),
		logging.Int("total", result.Total),
		logging.Int("successful", result.SuccessfulScenes),
		logging.Int("failed", len(result.Errors)))
	return working, result, nil
}

func (g *Generator) generateOne(ctx context.Context, working *document.Document, sceneID string, result *BulkResult) {
	scene := working.Scene(sceneID)
	if scene == nil {
		result.Errors = append(result.Errors, ItemError{SceneID: sceneID, Message: "scene not found"})
		return
	}
	if !scene.PromptReady() {
		result.Errors = append(result.Errors, ItemError{SceneID: sceneID, Message: "scene has no frame prompt"})
		return
	}

	generation, err := g.provider.Generate(ctx, scene.FramePrompt)
	if err != nil {
		g.logger.WarnContext(ctx, "image generation failed",
			logging.String(logging.FieldSceneID, sceneID),
			logging.Error(err))
		result.Errors = append(result.Errors, ItemError{SceneID: sceneID, Message: err.Error()})
		return
	}

	archived, err := g.archiver.Archive(ctx, working.ProjectID, sceneID, generation.URL, assets.Provenance{
		Provider: g.providerName,
		Model:    generation.Model,
	})
	if err != nil {
		result.Errors = append(result.Errors, ItemError{SceneID: sceneID, Message: err.Error()})
		return
	}

	working.SetSceneFrame(sceneID, archived.URL, document.FrameMetadata{
		Provider:    g.providerName,
		Model:       generation.Model,
		Seed:        generation.Seed,
		Width:       generation.Width,
		Height:      generation.Height,
		SourceURL:   generation.URL,
		Fallback:    archived.Fallback,
		GeneratedAt: g.now().UTC(),
	})
	result.SuccessfulScenes++
	result.Results = append(result.Results, SceneImage{
		SceneID:  sceneID,
		URL:      archived.URL,
		Fallback: archived.Fallback,
		Warning:  archived.Warning,
	})
}

func emit(onProgress ProgressFunc, progress Progress) {
	if onProgress != nil {
		onProgress(progress)
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
