package phases_test

import (
	"testing"
	"time"

	"storyboard/internal/document"
	"storyboard/internal/phases"
)

func stateFor(t *testing.T, states []phases.State, phase phases.Phase) phases.State {
	t.Helper()
	for _, state := range states {
		if state.Phase == phase {
			return state
		}
	}
	t.Fatalf("phase %s missing from evaluation", phase)
	return phases.State{}
}

func readyScene() *document.Scene {
	now := time.Now().UTC()
	return &document.Scene{
		FramePrompt:   "prompt",
		PromptMeta:    &document.PromptMetadata{Generator: "batch", GeneratedAt: now},
		StartFrameURL: "https://assets.local/frame.png",
		FrameMeta:     &document.FrameMetadata{Provider: "openai", GeneratedAt: now},
	}
}

func TestEvaluateNilDocument(t *testing.T) {
	states := phases.Evaluate(nil)
	if len(states) != len(phases.Order) {
		t.Fatalf("got %d states, want %d", len(states), len(phases.Order))
	}
	if !stateFor(t, states, phases.PhaseInterpretation).CanProceed {
		t.Fatal("interpretation must always be unlocked")
	}
	for _, phase := range []phases.Phase{phases.PhaseElementAssets, phases.PhaseSceneGeneration, phases.PhaseSceneVideo, phases.PhaseAssembly} {
		if stateFor(t, states, phase).CanProceed {
			t.Fatalf("phase %s unlocked on nil document", phase)
		}
	}
}

func TestTwoScenesUnlockGenerationOnly(t *testing.T) {
	doc := document.New("proj-1")
	doc.Scenes["scene_1"] = &document.Scene{Description: "one"}
	doc.Scenes["scene_2"] = &document.Scene{Description: "two"}

	states := phases.Evaluate(doc)
	if !stateFor(t, states, phases.PhaseInterpretation).CanProceed {
		t.Fatal("interpretation locked")
	}
	if !stateFor(t, states, phases.PhaseElementAssets).CanProceed {
		t.Fatal("element assets should unlock once scenes exist")
	}
	if !stateFor(t, states, phases.PhaseSceneGeneration).CanProceed {
		t.Fatal("scene generation should unlock once scenes exist")
	}
	if stateFor(t, states, phases.PhaseSceneVideo).CanProceed {
		t.Fatal("scene video unlocked before generation completed")
	}
	if stateFor(t, states, phases.PhaseAssembly).CanProceed {
		t.Fatal("assembly unlocked before generation completed")
	}
}

func TestSceneCountGateIsCardinalityOnly(t *testing.T) {
	doc := document.New("proj-1")
	doc.Scenes["scene_1"] = nil

	states := phases.Evaluate(doc)
	if !stateFor(t, states, phases.PhaseSceneGeneration).CanProceed {
		t.Fatal("an empty scene entry must still satisfy the scene-count gate")
	}
}

func TestSceneVideoRequiresEveryScene(t *testing.T) {
	doc := document.New("proj-1")
	doc.Scenes["scene_1"] = readyScene()
	doc.Scenes["scene_2"] = readyScene()
	doc.Scenes["scene_3"] = &document.Scene{
		FramePrompt: "prompt only",
		PromptMeta:  &document.PromptMetadata{Generator: "batch", GeneratedAt: time.Now()},
	}

	if phases.CanProceed(doc, phases.PhaseSceneVideo) {
		t.Fatal("one incomplete scene must keep scene video locked")
	}

	doc.Scenes["scene_3"] = readyScene()
	states := phases.Evaluate(doc)
	if !stateFor(t, states, phases.PhaseSceneVideo).CanProceed {
		t.Fatal("scene video locked after all scenes completed")
	}
	if !stateFor(t, states, phases.PhaseAssembly).CanProceed {
		t.Fatal("assembly locked after all scenes completed")
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	doc := document.New("proj-1")
	doc.Scenes["scene_1"] = readyScene()
	doc.Scenes["scene_2"] = &document.Scene{}

	first := phases.Evaluate(doc)
	second := phases.Evaluate(doc)
	if len(first) != len(second) {
		t.Fatalf("state counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("state %d differs between evaluations: %+v vs %+v", i, first[i], second[i])
		}
	}
}
