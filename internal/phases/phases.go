// Package phases computes which production phases a project may enter.
// Availability is derived from document content on every call and never
// stored, so the gates cannot drift from the document itself.
package phases

import "storyboard/internal/document"

// Phase identifies one stage of the production pipeline.
type Phase string

const (
	PhaseInterpretation  Phase = "interpretation"
	PhaseElementAssets   Phase = "element-assets"
	PhaseSceneGeneration Phase = "scene-generation"
	PhaseSceneVideo      Phase = "scene-video"
	PhaseAssembly        Phase = "assembly"
)

// Order lists the phases in pipeline order.
var Order = []Phase{
	PhaseInterpretation,
	PhaseElementAssets,
	PhaseSceneGeneration,
	PhaseSceneVideo,
	PhaseAssembly,
}

// State reports the gate decision for one phase.
type State struct {
	Phase      Phase  `json:"phase"`
	CanProceed bool   `json:"can_proceed"`
	Reason     string `json:"reason,omitempty"`
}

// Evaluate maps document content to a gate decision per phase. It is pure:
// the same document always yields the same states, and it never fails — a nil
// document or missing scene map is treated as empty.
//
// The scene-count gate checks cardinality only; entries that are present but
// empty still count. Tightening that would change which projects unlock
// generation, so it stays lenient.
func Evaluate(doc *document.Document) []State {
	sceneCount := 0
	if doc != nil {
		sceneCount = len(doc.Scenes)
	}
	hasScenes := sceneCount > 0
	generationDone := hasScenes && allScenesGenerated(doc)

	states := make([]State, 0, len(Order))
	for _, phase := range Order {
		state := State{Phase: phase}
		switch phase {
		case PhaseInterpretation:
			state.CanProceed = true
		case PhaseElementAssets, PhaseSceneGeneration:
			state.CanProceed = hasScenes
			if !hasScenes {
				state.Reason = "no scenes interpreted yet"
			}
		case PhaseSceneVideo:
			state.CanProceed = generationDone
			if !generationDone {
				state.Reason = incompleteReason(hasScenes)
			}
		case PhaseAssembly:
			state.CanProceed = generationDone
			if !generationDone {
				state.Reason = incompleteReason(hasScenes)
			}
		}
		states = append(states, state)
	}
	return states
}

// CanProceed reports the gate decision for a single phase.
func CanProceed(doc *document.Document, phase Phase) bool {
	for _, state := range Evaluate(doc) {
		if state.Phase == phase {
			return state.CanProceed
		}
	}
	return false
}

func allScenesGenerated(doc *document.Document) bool {
	for _, scene := range doc.Scenes {
		if !scene.PromptReady() || !scene.FrameReady() {
			return false
		}
	}
	return true
}

func incompleteReason(hasScenes bool) string {
	if !hasScenes {
		return "no scenes interpreted yet"
	}
	return "scene generation incomplete"
}
