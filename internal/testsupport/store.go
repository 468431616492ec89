package testsupport

import (
	"context"
	"testing"
	"time"

	"storyboard/internal/config"
	"storyboard/internal/docstore"
	"storyboard/internal/document"
)

// MustOpenStore opens a docstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *docstore.Store {
	t.Helper()

	store, err := docstore.Open(cfg)
	if err != nil {
		t.Fatalf("docstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewProject creates a project for tests using the provided store.
func NewProject(t testing.TB, store *docstore.Store, projectID, title string) *document.Document {
	t.Helper()

	doc, err := store.CreateProject(context.Background(), projectID, title)
	if err != nil {
		t.Fatalf("store.CreateProject: %v", err)
	}
	return doc
}

// SeedScenes adds empty scenes with the given IDs to the document and
// persists it silently.
func SeedScenes(t testing.TB, store *docstore.Store, doc *document.Document, sceneIDs ...string) {
	t.Helper()

	for _, id := range sceneIDs {
		doc.Scenes[id] = &document.Scene{Description: "scene " + id}
	}
	if err := store.WriteSilent(context.Background(), doc.ProjectID, doc); err != nil {
		t.Fatalf("store.WriteSilent: %v", err)
	}
}

// ReadyScene marks a scene as fully generated: prompt and frame both set with
// metadata.
func ReadyScene(scene *document.Scene) {
	now := time.Now().UTC()
	scene.FramePrompt = "generated prompt"
	scene.PromptMeta = &document.PromptMetadata{Generator: "batch", GeneratedAt: now}
	scene.StartFrameURL = "https://assets.local/frame.png"
	scene.FrameMeta = &document.FrameMetadata{Provider: "openai", GeneratedAt: now}
}
