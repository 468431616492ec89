package prompting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storyboard/internal/document"
	"storyboard/internal/logging"
	"storyboard/internal/services"
	"storyboard/internal/textgen"
)

// Mode selects the prompt generation strategy.
type Mode string

const (
	// ModeBatch issues a single combined provider call for all scenes.
	ModeBatch Mode = "batch"
	// ModePerScene issues one provider call per scene so failures stay
	// isolated to the scene that caused them.
	ModePerScene Mode = "per_scene"
)

// ParseMode maps a configuration string to a Mode.
func ParseMode(value string) (Mode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", string(ModeBatch):
		return ModeBatch, nil
	case string(ModePerScene):
		return ModePerScene, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "prompting", "mode", fmt.Sprintf("unknown prompt mode %q", value), nil)
	}
}

// Completer is the text provider surface the generator depends on.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (textgen.Completion, error)
	Model() string
}

// SceneResult is one successfully generated prompt.
type SceneResult struct {
	SceneID        string `json:"scene_id"`
	Prompt         string `json:"prompt"`
	CharacterCount int    `json:"character_count"`
}

// ItemError is one per-scene failure inside a batch.
type ItemError struct {
	SceneID string `json:"scene_id"`
	Message string `json:"message"`
}

// BulkResult summarizes a batch: total and successful counts plus per-item
// errors, never a bare boolean.
type BulkResult struct {
	Total            int           `json:"total"`
	SuccessfulScenes int           `json:"successful_scenes"`
	Results          []SceneResult `json:"results"`
	Errors           []ItemError   `json:"errors"`
}

// Success reports whether every requested scene received a prompt.
func (r BulkResult) Success() bool {
	return r.Total > 0 && r.SuccessfulScenes == r.Total
}

// Generator drives prompt generation across scenes.
type Generator struct {
	provider Completer
	logger   *slog.Logger
	now      func() time.Time
}

// NewGenerator constructs a prompt generator backed by provider.
func NewGenerator(provider Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{
		provider: provider,
		logger:   logger.With(logging.String(logging.FieldComponent, "prompting")),
		now:      time.Now,
	}
}

type providerResponse struct {
	Prompts []SceneResult `json:"prompts"`
}

// GenerateAll produces prompts for the requested scenes (default: all) and
// merges them onto a copy of the document. The copy and the batch result are
// returned; persisting the copy is the caller's responsibility.
//
// In batch mode a provider-level failure (transport error, unparseable
// payload) aborts the whole batch: there is no partial result to salvage
// from a single malformed multi-scene response. Scenes the provider simply
// omitted are per-scene failures and leave any prior prompt untouched.
func (g *Generator) GenerateAll(ctx context.Context, doc *document.Document, sceneIDs []string, mode Mode) (*document.Document, BulkResult, error) {
	var result BulkResult
	if doc == nil {
		return nil, result, services.Wrap(services.ErrValidation, "prompting", "generate", "nil document", nil)
	}
	if len(sceneIDs) == 0 {
		sceneIDs = doc.SceneIDs()
	}
	result.Total = len(sceneIDs)
	if result.Total == 0 {
		return nil, result, services.Wrap(services.ErrValidation, "prompting", "generate", "document has no scenes", nil)
	}

	working, err := doc.Clone()
	if err != nil {
		return nil, result, err
	}

	switch mode {
	case ModePerScene:
		g.generatePerScene(ctx, working, sceneIDs, &result)
	default:
		if err := g.generateBatch(ctx, working, sceneIDs, &result); err != nil {
			return nil, result, err
		}
	}

	g.logger.InfoContext(ctx, "prompt generation finished",
		logging.String(logging.FieldProjectID, working.ProjectID),
		logging.Int("total", result.Total),
		logging.Int("successful", result.SuccessfulScenes),
		logging.Int("failed", len(result.Errors)))
	return working, result, nil
}

func (g *Generator) generateBatch(ctx context.Context, working *document.Document, sceneIDs []string, result *BulkResult) error {
	userPayload, err := buildUserPayload(working, sceneIDs)
	if err != nil {
		return err
	}

	completion, err := g.provider.CompleteJSON(ctx, systemPrompt, userPayload)
	if err != nil {
		return services.Wrap(services.ErrProvider, "prompting", "generate", "batched completion call", err)
	}
	var response providerResponse
	if err := textgen.DecodeJSON(completion.Content, &response); err != nil {
		return services.Wrap(services.ErrProvider, "prompting", "generate", "parse multi-scene response", err)
	}

	returned := make(map[string]SceneResult, len(response.Prompts))
	for _, item := range response.Prompts {
		if strings.TrimSpace(item.Prompt) == "" {
			continue
		}
		returned[item.SceneID] = item
	}

	generatedAt := g.now().UTC()
	for _, sceneID := range sceneIDs {
		item, ok := returned[sceneID]
		if !ok {
			// The batched response format carries no per-scene error detail;
			// absence is all we know.
			result.Errors = append(result.Errors, ItemError{
				SceneID: sceneID,
				Message: "scene missing from provider response",
			})
			continue
		}
		g.mergePrompt(working, item, completion, ModeBatch, generatedAt, result)
	}
	return nil
}

func (g *Generator) generatePerScene(ctx context.Context, working *document.Document, sceneIDs []string, result *BulkResult) {
	for _, sceneID := range sceneIDs {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, ItemError{SceneID: sceneID, Message: ctx.Err().Error()})
			continue
		}
		userPayload, err := buildUserPayload(working, []string{sceneID})
		if err != nil {
			result.Errors = append(result.Errors, ItemError{SceneID: sceneID, Message: err.Error()})
			continue
		}
		completion, err := g.provider.CompleteJSON(ctx, systemPrompt, userPayload)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{SceneID: sceneID, Message: err.Error()})
			continue
		}
		var response providerResponse
		if err := textgen.DecodeJSON(completion.Content, &response); err != nil {
			result.Errors = append(result.Errors, ItemError{SceneID: sceneID, Message: err.Error()})
			continue
		}
		merged := false
		for _, item := range response.Prompts {
			if item.SceneID != sceneID || strings.TrimSpace(item.Prompt) == "" {
				continue
			}
			g.mergePrompt(working, item, completion, ModePerScene, g.now().UTC(), result)
			merged = true
			break
		}
		if !merged {
			result.Errors = append(result.Errors, ItemError{SceneID: sceneID, Message: "scene missing from provider response"})
		}
	}
}

func (g *Generator) mergePrompt(working *document.Document, item SceneResult, completion textgen.Completion, mode Mode, generatedAt time.Time, result *BulkResult) {
	characterCount := item.CharacterCount
	if characterCount <= 0 {
		characterCount = len(item.Prompt)
	}
	meta := document.PromptMetadata{
		Generator:      string(mode),
		Model:          completion.Model,
		GeneratedAt:    generatedAt,
		PromptTokens:   completion.PromptTokens,
		OutputTokens:   completion.CompletionTokens,
		CharacterCount: characterCount,
	}
	if !working.SetScenePrompt(item.SceneID, item.Prompt, meta) {
		result.Errors = append(result.Errors, ItemError{
			SceneID: item.SceneID,
			Message: "provider returned prompt for unknown scene",
		})
		return
	}
	result.SuccessfulScenes++
	result.Results = append(result.Results, SceneResult{
		SceneID:        item.SceneID,
		Prompt:         item.Prompt,
		CharacterCount: characterCount,
	})
}
