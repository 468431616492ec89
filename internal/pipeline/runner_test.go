package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"storyboard/internal/document"
	"storyboard/internal/imaging"
	"storyboard/internal/phases"
	"storyboard/internal/pipeline"
	"storyboard/internal/prompting"
	"storyboard/internal/services"
	"storyboard/internal/testsupport"
)

type fakePromptGen struct {
	err  error
	mode prompting.Mode
}

func (f *fakePromptGen) GenerateAll(_ context.Context, doc *document.Document, sceneIDs []string, mode prompting.Mode) (*document.Document, prompting.BulkResult, error) {
	f.mode = mode
	if f.err != nil {
		return nil, prompting.BulkResult{}, f.err
	}
	merged, err := doc.Clone()
	if err != nil {
		return nil, prompting.BulkResult{}, err
	}
	if len(sceneIDs) == 0 {
		sceneIDs = doc.SceneIDs()
	}
	result := prompting.BulkResult{Total: len(sceneIDs)}
	for _, id := range sceneIDs {
		merged.SetScenePrompt(id, "prompt for "+id, document.PromptMetadata{Generator: string(mode), GeneratedAt: time.Now()})
		result.SuccessfulScenes++
		result.Results = append(result.Results, prompting.SceneResult{SceneID: id, Prompt: "prompt for " + id})
	}
	return merged, result, nil
}

type fakeImageGen struct {
	failOn map[string]bool
}

func (f *fakeImageGen) GenerateAll(_ context.Context, doc *document.Document, sceneIDs []string, onProgress imaging.ProgressFunc) (*document.Document, imaging.BulkResult, error) {
	merged, err := doc.Clone()
	if err != nil {
		return nil, imaging.BulkResult{}, err
	}
	if len(sceneIDs) == 0 {
		sceneIDs = doc.SceneIDs()
	}
	result := imaging.BulkResult{Total: len(sceneIDs)}
	for _, id := range sceneIDs {
		if f.failOn[id] {
			result.Errors = append(result.Errors, imaging.ItemError{SceneID: id, Message: "provider failed"})
			continue
		}
		merged.SetSceneFrame(id, "https://assets.local/"+id+".png", document.FrameMetadata{Provider: "openai", GeneratedAt: time.Now()})
		result.SuccessfulScenes++
		result.Results = append(result.Results, imaging.SceneImage{SceneID: id, URL: "https://assets.local/" + id + ".png"})
	}
	if onProgress != nil {
		onProgress(imaging.Progress{Completed: result.SuccessfulScenes, Total: result.Total, Images: result.Results})
	}
	return merged, result, nil
}

type recordingNotifier struct {
	prompts  int
	images   int
	versions int
	errors   int
}

func (n *recordingNotifier) NotifyPromptBatchCompleted(context.Context, string, int, int) error {
	n.prompts++
	return nil
}

func (n *recordingNotifier) NotifyImageBatchCompleted(context.Context, string, int, int, time.Duration) error {
	n.images++
	return nil
}

func (n *recordingNotifier) NotifyVersionSaved(context.Context, string, int, string) error {
	n.versions++
	return nil
}

func (n *recordingNotifier) NotifyError(context.Context, error, string) error {
	n.errors++
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

func phaseState(t *testing.T, states []phases.State, phase phases.Phase) phases.State {
	t.Helper()
	for _, state := range states {
		if state.Phase == phase {
			return state
		}
	}
	t.Fatalf("phase %s missing", phase)
	return phases.State{}
}

func TestRunPromptStagePersistsSilently(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	doc := testsupport.NewProject(t, store, "proj-1", "Demo")
	testsupport.SeedScenes(t, store, doc, "scene_001", "scene_002")

	notifier := &recordingNotifier{}
	runner := pipeline.NewRunner(store, &fakePromptGen{}, &fakeImageGen{}, notifier, nil)

	ctx := context.Background()
	result, states, err := runner.RunPromptStage(ctx, "proj-1", nil)
	if err != nil {
		t.Fatalf("RunPromptStage: %v", err)
	}
	if result.SuccessfulScenes != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if notifier.prompts != 1 {
		t.Fatalf("prompt notifications = %d, want 1", notifier.prompts)
	}

	loaded, err := store.GetDocument(ctx, "proj-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if !loaded.Scene("scene_001").PromptReady() {
		t.Fatal("prompt merge not persisted")
	}
	if loaded.CurrentVersion != 0 {
		t.Fatal("stage run must not advance the version")
	}
	versions, err := store.ListVersions(ctx, "proj-1")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 0 {
		t.Fatal("stage run must not create a version row")
	}
	if phaseState(t, states, phases.PhaseSceneVideo).CanProceed {
		t.Fatal("scene video must stay locked until frames exist")
	}
}

func TestRunPromptStageRequiresScenes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewProject(t, store, "proj-1", "Demo")

	runner := pipeline.NewRunner(store, &fakePromptGen{}, &fakeImageGen{}, &recordingNotifier{}, nil)
	_, _, err := runner.RunPromptStage(context.Background(), "proj-1", nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected locked-phase validation error, got %v", err)
	}
}

func TestRunPromptStageBatchAbortNotifiesError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	doc := testsupport.NewProject(t, store, "proj-1", "Demo")
	testsupport.SeedScenes(t, store, doc, "scene_001")

	notifier := &recordingNotifier{}
	providerErr := services.Wrap(services.ErrProvider, "prompting", "generate", "batched completion call", errors.New("timeout"))
	runner := pipeline.NewRunner(store, &fakePromptGen{err: providerErr}, &fakeImageGen{}, notifier, nil)

	_, _, err := runner.RunPromptStage(context.Background(), "proj-1", nil)
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if notifier.errors != 1 {
		t.Fatalf("error notifications = %d, want 1", notifier.errors)
	}
}

func TestRunImageStageRetainsPartialMerges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	doc := testsupport.NewProject(t, store, "proj-1", "Demo")
	testsupport.SeedScenes(t, store, doc, "scene_001", "scene_002", "scene_003")

	notifier := &recordingNotifier{}
	runner := pipeline.NewRunner(store, &fakePromptGen{}, &fakeImageGen{failOn: map[string]bool{"scene_002": true}}, notifier, nil)

	ctx := context.Background()
	var progressEvents int
	result, _, err := runner.RunImageStage(ctx, "proj-1", nil, func(imaging.Progress) { progressEvents++ })
	if err != nil {
		t.Fatalf("RunImageStage: %v", err)
	}
	if result.SuccessfulScenes != 2 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if progressEvents == 0 {
		t.Fatal("progress callback not invoked")
	}
	if notifier.images != 1 {
		t.Fatalf("image notifications = %d, want 1", notifier.images)
	}

	loaded, err := store.GetDocument(ctx, "proj-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if !loaded.Scene("scene_001").FrameReady() || !loaded.Scene("scene_003").FrameReady() {
		t.Fatal("successful merges not persisted")
	}
	if loaded.Scene("scene_002").FrameReady() {
		t.Fatal("failed scene must not be persisted with a frame")
	}
}

func TestSaveVersionNotifiesAndAdvances(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	doc := testsupport.NewProject(t, store, "proj-1", "Demo")
	testsupport.SeedScenes(t, store, doc, "scene_001")

	notifier := &recordingNotifier{}
	runner := pipeline.NewRunner(store, &fakePromptGen{}, &fakeImageGen{}, notifier, nil)

	version, _, err := runner.SaveVersion(context.Background(), "proj-1", "first save")
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	if version.Number != 1 {
		t.Fatalf("version number = %d, want 1", version.Number)
	}
	if notifier.versions != 1 {
		t.Fatalf("version notifications = %d, want 1", notifier.versions)
	}
}

func TestRestoreVersionAppendsNewVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	doc := testsupport.NewProject(t, store, "proj-1", "Demo")
	testsupport.SeedScenes(t, store, doc, "scene_001")

	runner := pipeline.NewRunner(store, &fakePromptGen{}, &fakeImageGen{}, &recordingNotifier{}, nil)
	ctx := context.Background()

	if _, _, err := runner.SaveVersion(ctx, "proj-1", "clean state"); err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}

	doc.Scenes["scene_001"].Description = "mutated"
	if err := store.WriteSilent(ctx, "proj-1", doc); err != nil {
		t.Fatalf("WriteSilent: %v", err)
	}

	restored, err := runner.RestoreVersion(ctx, "proj-1", 1)
	if err != nil {
		t.Fatalf("RestoreVersion: %v", err)
	}
	if restored.Number != 2 {
		t.Fatalf("restore must append version 2, got %d", restored.Number)
	}

	loaded, err := store.GetDocument(ctx, "proj-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if loaded.Scene("scene_001").Description == "mutated" {
		t.Fatal("restore did not replace the live document")
	}
	versions, err := store.ListVersions(ctx, "proj-1")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("history length = %d, want 2 (append-only)", len(versions))
	}
}

func TestStatusReturnsPhaseStates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	doc := testsupport.NewProject(t, store, "proj-1", "Demo")
	testsupport.SeedScenes(t, store, doc, "scene_001")

	runner := pipeline.NewRunner(store, &fakePromptGen{}, &fakeImageGen{}, &recordingNotifier{}, nil)
	loaded, states, err := runner.Status(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if loaded.ProjectID != "proj-1" {
		t.Fatalf("unexpected project %q", loaded.ProjectID)
	}
	if !phaseState(t, states, phases.PhaseSceneGeneration).CanProceed {
		t.Fatal("scene generation should be unlocked")
	}
}
