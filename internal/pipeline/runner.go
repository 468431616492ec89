package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"storyboard/internal/document"
	"storyboard/internal/imaging"
	"storyboard/internal/logging"
	"storyboard/internal/notifications"
	"storyboard/internal/phases"
	"storyboard/internal/prompting"
	"storyboard/internal/services"
)

// Store is the document persistence surface the runner depends on.
type Store interface {
	GetDocument(ctx context.Context, projectID string) (*document.Document, error)
	WriteSilent(ctx context.Context, projectID string, doc *document.Document) error
	WriteVersioned(ctx context.Context, projectID string, doc *document.Document, description string) (*document.Version, error)
	GetVersion(ctx context.Context, projectID string, number int) (*document.Version, error)
	ListVersions(ctx context.Context, projectID string) ([]*document.Version, error)
}

// PromptGenerator runs the prompt stage across scenes.
type PromptGenerator interface {
	GenerateAll(ctx context.Context, doc *document.Document, sceneIDs []string, mode prompting.Mode) (*document.Document, prompting.BulkResult, error)
}

// ImageGenerator runs the image stage across scenes.
type ImageGenerator interface {
	GenerateAll(ctx context.Context, doc *document.Document, sceneIDs []string, onProgress imaging.ProgressFunc) (*document.Document, imaging.BulkResult, error)
}

// Runner coordinates the generation stages against the document store. Stage
// results are merged through the silent-write path; cutting a version stays
// an explicit caller decision.
type Runner struct {
	store      Store
	prompts    PromptGenerator
	images     ImageGenerator
	notifier   notifications.Service
	promptMode prompting.Mode
	logger     *slog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithPromptMode overrides the default prompt generation strategy.
func WithPromptMode(mode prompting.Mode) Option {
	return func(r *Runner) {
		if mode != "" {
			r.promptMode = mode
		}
	}
}

// NewRunner constructs a pipeline runner.
func NewRunner(store Store, prompts PromptGenerator, images ImageGenerator, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	runner := &Runner{
		store:      store,
		prompts:    prompts,
		images:     images,
		notifier:   notifier,
		promptMode: prompting.ModeBatch,
		logger:     logger.With(logging.String(logging.FieldComponent, "pipeline")),
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// RunPromptStage generates frame prompts for the project's scenes, persists
// the merged document silently, and returns the batch result with the
// re-evaluated phase states.
func (r *Runner) RunPromptStage(ctx context.Context, projectID string, sceneIDs []string) (prompting.BulkResult, []phases.State, error) {
	ctx = r.stageContext(ctx, projectID, "prompts")
	logger := logging.WithContext(ctx, r.logger)

	doc, err := r.store.GetDocument(ctx, projectID)
	if err != nil {
		return prompting.BulkResult{}, nil, err
	}
	if !phases.CanProceed(doc, phases.PhaseSceneGeneration) {
		return prompting.BulkResult{}, phases.Evaluate(doc), services.Wrap(services.ErrValidation, "pipeline", "prompts", "scene generation phase is locked", nil)
	}

	merged, result, err := r.prompts.GenerateAll(ctx, doc, sceneIDs, r.promptMode)
	if err != nil {
		r.notifyError(ctx, err, "prompt generation")
		return result, phases.Evaluate(doc), err
	}
	if err := r.store.WriteSilent(ctx, projectID, merged); err != nil {
		return result, phases.Evaluate(doc), err
	}

	logger.InfoContext(ctx, "prompt stage persisted",
		logging.Int("successful", result.SuccessfulScenes),
		logging.Int("failed", len(result.Errors)))
	if r.notifier != nil {
		if err := r.notifier.NotifyPromptBatchCompleted(ctx, projectID, result.SuccessfulScenes, len(result.Errors)); err != nil {
			logger.WarnContext(ctx, "prompt notification failed", logging.Error(err))
		}
	}
	return result, phases.Evaluate(merged), nil
}

// RunImageStage generates start frames for the project's scenes, persists
// the merged document silently, and returns the batch result with the
// re-evaluated phase states. Partial failures persist the successful subset.
func (r *Runner) RunImageStage(ctx context.Context, projectID string, sceneIDs []string, onProgress imaging.ProgressFunc) (imaging.BulkResult, []phases.State, error) {
	ctx = r.stageContext(ctx, projectID, "images")
	logger := logging.WithContext(ctx, r.logger)

	doc, err := r.store.GetDocument(ctx, projectID)
	if err != nil {
		return imaging.BulkResult{}, nil, err
	}
	if !phases.CanProceed(doc, phases.PhaseSceneGeneration) {
		return imaging.BulkResult{}, phases.Evaluate(doc), services.Wrap(services.ErrValidation, "pipeline", "images", "scene generation phase is locked", nil)
	}

	started := time.Now()
	merged, result, err := r.images.GenerateAll(ctx, doc, sceneIDs, onProgress)
	if err != nil {
		r.notifyError(ctx, err, "image generation")
		return result, phases.Evaluate(doc), err
	}
	if err := r.store.WriteSilent(ctx, projectID, merged); err != nil {
		return result, phases.Evaluate(doc), err
	}

	logger.InfoContext(ctx, "image stage persisted",
		logging.Int("successful", result.SuccessfulScenes),
		logging.Int("failed", len(result.Errors)))
	if r.notifier != nil {
		if err := r.notifier.NotifyImageBatchCompleted(ctx, projectID, result.SuccessfulScenes, len(result.Errors), time.Since(started)); err != nil {
			logger.WarnContext(ctx, "image notification failed", logging.Error(err))
		}
	}
	return result, phases.Evaluate(merged), nil
}

// SaveVersion cuts a new numbered snapshot from the live document.
func (r *Runner) SaveVersion(ctx context.Context, projectID, description string) (*document.Version, []phases.State, error) {
	ctx = r.stageContext(ctx, projectID, "save")
	logger := logging.WithContext(ctx, r.logger)

	doc, err := r.store.GetDocument(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	version, err := r.store.WriteVersioned(ctx, projectID, doc, description)
	if err != nil {
		r.notifyError(ctx, err, "version save")
		return nil, phases.Evaluate(doc), err
	}

	logger.InfoContext(ctx, "version saved", logging.Int(logging.FieldVersion, version.Number))
	if r.notifier != nil {
		if err := r.notifier.NotifyVersionSaved(ctx, projectID, version.Number, description); err != nil {
			logger.WarnContext(ctx, "version notification failed", logging.Error(err))
		}
	}
	return version, phases.Evaluate(doc), nil
}

// RestoreVersion replaces the live document with an earlier snapshot and
// records the restore as a new version, so history stays append-only.
func (r *Runner) RestoreVersion(ctx context.Context, projectID string, number int) (*document.Version, error) {
	ctx = r.stageContext(ctx, projectID, "restore")

	version, err := r.store.GetVersion(ctx, projectID, number)
	if err != nil {
		return nil, err
	}
	snapshot, err := version.Snapshot.Clone()
	if err != nil {
		return nil, err
	}
	restored, err := r.store.WriteVersioned(ctx, projectID, snapshot, fmt.Sprintf("restored from version %d", number))
	if err != nil {
		r.notifyError(ctx, err, "version restore")
		return nil, err
	}
	logging.WithContext(ctx, r.logger).InfoContext(ctx, "version restored",
		logging.Int("source_version", number),
		logging.Int(logging.FieldVersion, restored.Number))
	return restored, nil
}

// Status returns the live document and its current phase gate decisions.
func (r *Runner) Status(ctx context.Context, projectID string) (*document.Document, []phases.State, error) {
	doc, err := r.store.GetDocument(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	return doc, phases.Evaluate(doc), nil
}

func (r *Runner) stageContext(ctx context.Context, projectID, stage string) context.Context {
	ctx = services.WithProjectID(ctx, projectID)
	ctx = services.WithStage(ctx, stage)
	return services.WithRequestID(ctx, uuid.NewString())
}

func (r *Runner) notifyError(ctx context.Context, err error, label string) {
	if r.notifier == nil {
		return
	}
	if notifyErr := r.notifier.NotifyError(ctx, err, label); notifyErr != nil {
		logging.WithContext(ctx, r.logger).WarnContext(ctx, "error notification failed", logging.Error(notifyErr))
	}
}
