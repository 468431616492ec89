package prompting_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"storyboard/internal/document"
	"storyboard/internal/prompting"
	"storyboard/internal/services"
	"storyboard/internal/textgen"
)

type fakeProvider struct {
	calls    int
	payloads []string
	respond  func(userPrompt string) (textgen.Completion, error)
}

func (f *fakeProvider) CompleteJSON(_ context.Context, _, userPrompt string) (textgen.Completion, error) {
	f.calls++
	f.payloads = append(f.payloads, userPrompt)
	return f.respond(userPrompt)
}

func (f *fakeProvider) Model() string { return "demo-model" }

func sceneDoc(sceneIDs ...string) *document.Document {
	doc := document.New("proj-1")
	for _, id := range sceneIDs {
		doc.Scenes[id] = &document.Scene{Description: "scene " + id}
	}
	return doc
}

func promptsResponse(results ...prompting.SceneResult) (textgen.Completion, error) {
	encoded, err := json.Marshal(map[string]any{"prompts": results})
	if err != nil {
		return textgen.Completion{}, err
	}
	return textgen.Completion{Content: string(encoded), Model: "demo-model", PromptTokens: 300, CompletionTokens: 90}, nil
}

func TestBatchGeneratesAllScenesInOneCall(t *testing.T) {
	provider := &fakeProvider{respond: func(string) (textgen.Completion, error) {
		return promptsResponse(
			prompting.SceneResult{SceneID: "scene_001", Prompt: "first prompt", CharacterCount: 12},
			prompting.SceneResult{SceneID: "scene_002", Prompt: "second prompt"},
		)
	}}
	generator := prompting.NewGenerator(provider, nil)

	doc := sceneDoc("scene_001", "scene_002")
	merged, result, err := generator.GenerateAll(context.Background(), doc, nil, prompting.ModeBatch)
	if err != nil {
		t.Fatalf("GenerateAll returned error: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("expected a single provider call, got %d", provider.calls)
	}
	if !result.Success() || result.SuccessfulScenes != 2 {
		t.Fatalf("unexpected result %+v", result)
	}

	scene := merged.Scene("scene_001")
	if !scene.PromptReady() {
		t.Fatal("scene_001 not prompt ready after merge")
	}
	if scene.PromptMeta.CharacterCount != 12 {
		t.Fatalf("character count = %d", scene.PromptMeta.CharacterCount)
	}
	if scene.PromptMeta.PromptTokens != 300 || scene.PromptMeta.OutputTokens != 90 {
		t.Fatalf("token accounting not propagated: %+v", scene.PromptMeta)
	}
	// Omitted character counts default to the prompt length.
	if merged.Scene("scene_002").PromptMeta.CharacterCount != len("second prompt") {
		t.Fatalf("defaulted character count = %d", merged.Scene("scene_002").PromptMeta.CharacterCount)
	}

	// The original document is untouched; only the returned copy is merged.
	if doc.Scene("scene_001").PromptReady() {
		t.Fatal("GenerateAll mutated the input document")
	}
}

func TestBatchMissingSceneIsPerSceneFailure(t *testing.T) {
	provider := &fakeProvider{respond: func(string) (textgen.Completion, error) {
		return promptsResponse(prompting.SceneResult{SceneID: "scene_001", Prompt: "only one"})
	}}
	generator := prompting.NewGenerator(provider, nil)

	doc := sceneDoc("scene_001", "scene_002")
	doc.Scenes["scene_002"].FramePrompt = "prior prompt"
	doc.Scenes["scene_002"].PromptMeta = &document.PromptMetadata{Generator: "batch"}

	merged, result, err := generator.GenerateAll(context.Background(), doc, nil, prompting.ModeBatch)
	if err != nil {
		t.Fatalf("GenerateAll returned error: %v", err)
	}
	if result.Success() {
		t.Fatal("batch with a missing scene must not report success")
	}
	if result.SuccessfulScenes != 1 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Errors[0].SceneID != "scene_002" {
		t.Fatalf("error scene = %q", result.Errors[0].SceneID)
	}
	// A failed scene keeps whatever prompt it already had.
	if merged.Scene("scene_002").FramePrompt != "prior prompt" {
		t.Fatal("missing scene lost its prior prompt")
	}
}

func TestBatchTransportFailureAbortsWholeBatch(t *testing.T) {
	provider := &fakeProvider{respond: func(string) (textgen.Completion, error) {
		return textgen.Completion{}, errors.New("gateway timeout")
	}}
	generator := prompting.NewGenerator(provider, nil)

	_, _, err := generator.GenerateAll(context.Background(), sceneDoc("scene_001", "scene_002"), nil, prompting.ModeBatch)
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestBatchMalformedResponseAbortsWholeBatch(t *testing.T) {
	provider := &fakeProvider{respond: func(string) (textgen.Completion, error) {
		return textgen.Completion{Content: "sorry, I cannot help with that"}, nil
	}}
	generator := prompting.NewGenerator(provider, nil)

	_, _, err := generator.GenerateAll(context.Background(), sceneDoc("scene_001"), nil, prompting.ModeBatch)
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestBatchPayloadEmbedsElementsAndStyle(t *testing.T) {
	provider := &fakeProvider{respond: func(string) (textgen.Completion, error) {
		return promptsResponse(prompting.SceneResult{SceneID: "scene_001", Prompt: "p"})
	}}
	generator := prompting.NewGenerator(provider, nil)

	doc := sceneDoc("scene_001")
	doc.GlobalStyle = document.Style{ArtStyle: "charcoal sketch"}
	doc.Elements["hero"] = &document.Element{Name: "Mara", Kind: "character", Description: "a wiry courier"}
	doc.Scenes["scene_001"].ElementsPresent = []string{"hero"}

	if _, _, err := generator.GenerateAll(context.Background(), doc, nil, prompting.ModeBatch); err != nil {
		t.Fatalf("GenerateAll returned error: %v", err)
	}
	payload := provider.payloads[0]
	if !strings.Contains(payload, "charcoal sketch") {
		t.Fatal("payload missing global style")
	}
	if !strings.Contains(payload, "a wiry courier") {
		t.Fatal("payload missing element description")
	}
}

func TestPerSceneModeIsolatesFailures(t *testing.T) {
	provider := &fakeProvider{respond: func(userPrompt string) (textgen.Completion, error) {
		if strings.Contains(userPrompt, "scene_002") {
			return textgen.Completion{}, errors.New("rate limited")
		}
		for _, id := range []string{"scene_001", "scene_003"} {
			if strings.Contains(userPrompt, id) {
				return promptsResponse(prompting.SceneResult{SceneID: id, Prompt: "prompt for " + id})
			}
		}
		return textgen.Completion{}, fmt.Errorf("unexpected payload %s", userPrompt)
	}}
	generator := prompting.NewGenerator(provider, nil)

	doc := sceneDoc("scene_001", "scene_002", "scene_003")
	merged, result, err := generator.GenerateAll(context.Background(), doc, nil, prompting.ModePerScene)
	if err != nil {
		t.Fatalf("GenerateAll returned error: %v", err)
	}
	if provider.calls != 3 {
		t.Fatalf("expected 3 provider calls, got %d", provider.calls)
	}
	if result.SuccessfulScenes != 2 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Errors[0].SceneID != "scene_002" {
		t.Fatalf("error scene = %q", result.Errors[0].SceneID)
	}
	if merged.Scene("scene_002").PromptReady() {
		t.Fatal("failed scene must not be merged")
	}
	if !merged.Scene("scene_001").PromptReady() || !merged.Scene("scene_003").PromptReady() {
		t.Fatal("successful scenes must be merged")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    prompting.Mode
		wantErr bool
	}{
		{input: "", want: prompting.ModeBatch},
		{input: "batch", want: prompting.ModeBatch},
		{input: "per_scene", want: prompting.ModePerScene},
		{input: "parallel", wantErr: true},
	}
	for _, tc := range tests {
		mode, err := prompting.ParseMode(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseMode(%q) expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseMode(%q) returned error: %v", tc.input, err)
		}
		if mode != tc.want {
			t.Fatalf("ParseMode(%q) = %q, want %q", tc.input, mode, tc.want)
		}
	}
}

func TestGenerateAllRejectsEmptyDocument(t *testing.T) {
	provider := &fakeProvider{respond: func(string) (textgen.Completion, error) {
		return textgen.Completion{}, nil
	}}
	generator := prompting.NewGenerator(provider, nil)

	_, _, err := generator.GenerateAll(context.Background(), document.New("proj-1"), nil, prompting.ModeBatch)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
