package document

import (
	"sort"
	"strings"
	"time"
)

// Document is the single per-project record holding all scenes, elements, and
// style data. Live content may diverge from the latest stored version between
// an automated write and the next explicit save.
type Document struct {
	ProjectID      string              `json:"project_id"`
	Scenes         map[string]*Scene   `json:"scenes"`
	Elements       map[string]*Element `json:"elements"`
	GlobalStyle    Style               `json:"global_style"`
	Meta           ProjectMeta         `json:"project_metadata"`
	CurrentVersion int                 `json:"current_version"`
}

// Scene is one addressable unit of narrative plus generated-asset state.
// Scenes are created empty by script interpretation and mutated field by
// field by the generation stages; they are overwritten, never deleted.
type Scene struct {
	Title           string            `json:"title,omitempty"`
	Description     string            `json:"natural_description,omitempty"`
	ActionSummary   string            `json:"action_summary,omitempty"`
	Dialogue        string            `json:"dialogue,omitempty"`
	CameraType      string            `json:"camera_type,omitempty"`
	Mood            string            `json:"mood,omitempty"`
	ElementsPresent []string          `json:"elements_present,omitempty"`
	StyleOverrides  map[string]string `json:"style_overrides,omitempty"`

	FramePrompt string          `json:"scene_frame_prompt,omitempty"`
	PromptMeta  *PromptMetadata `json:"prompt_metadata,omitempty"`

	StartFrameURL string         `json:"scene_start_frame,omitempty"`
	FrameMeta     *FrameMetadata `json:"frame_metadata,omitempty"`
}

// Element describes a character, location, or prop referenced by scenes.
// Elements are read-only input to generation; the pipeline never mutates them.
type Element struct {
	Name              string `json:"name"`
	Kind              string `json:"kind,omitempty"`
	Description       string `json:"description,omitempty"`
	ReferenceImageURL string `json:"reference_image_url,omitempty"`
}

// Style holds the global visual direction consumed by prompt generation.
// Scene-level StyleOverrides take precedence key by key.
type Style struct {
	ArtStyle     string            `json:"art_style,omitempty"`
	ColorPalette string            `json:"color_palette,omitempty"`
	AspectRatio  string            `json:"aspect_ratio,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// ProjectMeta carries descriptive, non-functional fields.
type ProjectMeta struct {
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// PromptMetadata is evidence that prompt generation completed for a scene.
// It is only ever set together with the scene's frame prompt.
type PromptMetadata struct {
	Generator      string    `json:"generator"`
	Model          string    `json:"model,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
	PromptTokens   int       `json:"prompt_tokens,omitempty"`
	OutputTokens   int       `json:"output_tokens,omitempty"`
	CharacterCount int       `json:"character_count,omitempty"`
}

// FrameMetadata is evidence that image generation completed for a scene.
// It is only ever set together with the scene's start frame URL.
type FrameMetadata struct {
	Provider    string    `json:"provider"`
	Model       string    `json:"model,omitempty"`
	Seed        int64     `json:"seed,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	Fallback    bool      `json:"fallback,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Version is an immutable, numbered snapshot of a document created only by an
// explicit save. Numbers for a project are gapless and strictly increasing.
type Version struct {
	ProjectID   string    `json:"project_id"`
	Number      int       `json:"version_number"`
	Snapshot    *Document `json:"snapshot,omitempty"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// New returns an empty document for the given project with maps initialized.
func New(projectID string) *Document {
	return &Document{
		ProjectID: projectID,
		Scenes:    make(map[string]*Scene),
		Elements:  make(map[string]*Element),
	}
}

// EnsureMaps normalizes nil maps to empty ones so callers can treat absence
// and emptiness identically.
func (d *Document) EnsureMaps() {
	if d.Scenes == nil {
		d.Scenes = make(map[string]*Scene)
	}
	if d.Elements == nil {
		d.Elements = make(map[string]*Element)
	}
}

// SceneIDs returns all scene keys in deterministic sorted order.
func (d *Document) SceneIDs() []string {
	if d == nil || len(d.Scenes) == 0 {
		return nil
	}
	ids := make([]string, 0, len(d.Scenes))
	for id := range d.Scenes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Scene returns the scene for id, or nil when absent.
func (d *Document) Scene(id string) *Scene {
	if d == nil || d.Scenes == nil {
		return nil
	}
	return d.Scenes[id]
}

// SetScenePrompt writes a generated frame prompt and its metadata together,
// preserving the set-together invariant between content and evidence.
func (d *Document) SetScenePrompt(sceneID, prompt string, meta PromptMetadata) bool {
	scene := d.Scene(sceneID)
	if scene == nil || strings.TrimSpace(prompt) == "" {
		return false
	}
	scene.FramePrompt = prompt
	metaCopy := meta
	scene.PromptMeta = &metaCopy
	return true
}

// SetSceneFrame writes a generated start-frame URL and its metadata together.
func (d *Document) SetSceneFrame(sceneID, frameURL string, meta FrameMetadata) bool {
	scene := d.Scene(sceneID)
	if scene == nil || strings.TrimSpace(frameURL) == "" {
		return false
	}
	scene.StartFrameURL = frameURL
	metaCopy := meta
	scene.FrameMeta = &metaCopy
	return true
}

// PromptReady reports whether prompt generation has completed for the scene.
func (s *Scene) PromptReady() bool {
	return s != nil && strings.TrimSpace(s.FramePrompt) != "" && s.PromptMeta != nil
}

// FrameReady reports whether image generation has completed for the scene.
func (s *Scene) FrameReady() bool {
	return s != nil && strings.TrimSpace(s.StartFrameURL) != "" && s.FrameMeta != nil
}

// GenerationComplete reports whether every scene has both a frame prompt and
// a start frame. An empty scene map is not complete.
func (d *Document) GenerationComplete() bool {
	if d == nil || len(d.Scenes) == 0 {
		return false
	}
	for _, scene := range d.Scenes {
		if !scene.PromptReady() || !scene.FrameReady() {
			return false
		}
	}
	return true
}

// StyleFor merges the global style with a scene's overrides, scene values
// winning key by key. The result is a flat attribute map for prompt builders.
func (d *Document) StyleFor(sceneID string) map[string]string {
	merged := make(map[string]string)
	if d != nil {
		if d.GlobalStyle.ArtStyle != "" {
			merged["art_style"] = d.GlobalStyle.ArtStyle
		}
		if d.GlobalStyle.ColorPalette != "" {
			merged["color_palette"] = d.GlobalStyle.ColorPalette
		}
		if d.GlobalStyle.AspectRatio != "" {
			merged["aspect_ratio"] = d.GlobalStyle.AspectRatio
		}
		for key, value := range d.GlobalStyle.Extra {
			merged[key] = value
		}
	}
	if scene := d.Scene(sceneID); scene != nil {
		for key, value := range scene.StyleOverrides {
			merged[key] = value
		}
	}
	return merged
}
