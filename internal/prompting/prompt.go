package prompting

import (
	"encoding/json"
	"fmt"
	"sort"

	"storyboard/internal/document"
)

const systemPrompt = `You are a storyboard artist's assistant. For every scene you receive, write one vivid, self-contained image generation prompt describing the scene's opening frame. Respect the global style attributes and any per-scene overrides. Mention the visual traits of every element present in the scene. Respond with JSON only, in the form {"prompts": [{"scene_id": "...", "prompt": "...", "character_count": 0}]} with one entry per scene.`

type requestScene struct {
	SceneID         string            `json:"scene_id"`
	Title           string            `json:"title,omitempty"`
	Description     string            `json:"natural_description,omitempty"`
	ActionSummary   string            `json:"action_summary,omitempty"`
	Dialogue        string            `json:"dialogue,omitempty"`
	CameraType      string            `json:"camera_type,omitempty"`
	Mood            string            `json:"mood,omitempty"`
	Style           map[string]string `json:"style,omitempty"`
	ElementsPresent []requestElement  `json:"elements_present,omitempty"`
}

type requestElement struct {
	Name        string `json:"name"`
	Kind        string `json:"kind,omitempty"`
	Description string `json:"description,omitempty"`
}

// buildUserPayload renders the requested scenes, their referenced elements,
// and the merged style into the JSON body sent to the provider.
func buildUserPayload(doc *document.Document, sceneIDs []string) (string, error) {
	scenes := make([]requestScene, 0, len(sceneIDs))
	for _, id := range sceneIDs {
		scene := doc.Scene(id)
		if scene == nil {
			scenes = append(scenes, requestScene{SceneID: id})
			continue
		}
		scenes = append(scenes, requestScene{
			SceneID:         id,
			Title:           scene.Title,
			Description:     scene.Description,
			ActionSummary:   scene.ActionSummary,
			Dialogue:        scene.Dialogue,
			CameraType:      scene.CameraType,
			Mood:            scene.Mood,
			Style:           doc.StyleFor(id),
			ElementsPresent: elementsFor(doc, scene),
		})
	}
	payload := struct {
		Scenes []requestScene `json:"scenes"`
	}{Scenes: scenes}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode prompt payload: %w", err)
	}
	return string(encoded), nil
}

func elementsFor(doc *document.Document, scene *document.Scene) []requestElement {
	if len(scene.ElementsPresent) == 0 {
		return nil
	}
	keys := append([]string(nil), scene.ElementsPresent...)
	sort.Strings(keys)
	elements := make([]requestElement, 0, len(keys))
	for _, key := range keys {
		element, ok := doc.Elements[key]
		if !ok || element == nil {
			continue
		}
		elements = append(elements, requestElement{
			Name:        element.Name,
			Kind:        element.Kind,
			Description: element.Description,
		})
	}
	return elements
}
