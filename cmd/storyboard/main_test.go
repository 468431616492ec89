package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"storyboard/internal/config"
	"storyboard/internal/daemon"
	"storyboard/internal/docstore"
	"storyboard/internal/document"
	"storyboard/internal/imaging"
	"storyboard/internal/pipeline"
	"storyboard/internal/prompting"
	"storyboard/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *docstore.Store
	daemon     *daemon.Daemon
	apiAddress string
	baseDir    string
}

type cliStubPromptGen struct{}

func (cliStubPromptGen) GenerateAll(_ context.Context, doc *document.Document, sceneIDs []string, mode prompting.Mode) (*document.Document, prompting.BulkResult, error) {
	merged, err := doc.Clone()
	if err != nil {
		return nil, prompting.BulkResult{}, err
	}
	if len(sceneIDs) == 0 {
		sceneIDs = doc.SceneIDs()
	}
	result := prompting.BulkResult{Total: len(sceneIDs)}
	for _, id := range sceneIDs {
		prompt := "wide establishing shot of " + id
		merged.SetScenePrompt(id, prompt, document.PromptMetadata{Generator: string(mode), GeneratedAt: time.Now()})
		result.SuccessfulScenes++
		result.Results = append(result.Results, prompting.SceneResult{SceneID: id, Prompt: prompt, CharacterCount: len(prompt)})
	}
	return merged, result, nil
}

type cliStubImageGen struct{}

func (cliStubImageGen) GenerateAll(_ context.Context, doc *document.Document, sceneIDs []string, _ imaging.ProgressFunc) (*document.Document, imaging.BulkResult, error) {
	merged, err := doc.Clone()
	if err != nil {
		return nil, imaging.BulkResult{}, err
	}
	if len(sceneIDs) == 0 {
		sceneIDs = doc.SceneIDs()
	}
	result := imaging.BulkResult{Total: len(sceneIDs)}
	for _, id := range sceneIDs {
		url := "https://assets.local/" + id + ".png"
		merged.SetSceneFrame(id, url, document.FrameMetadata{Provider: "openai", GeneratedAt: time.Now()})
		result.SuccessfulScenes++
		result.Results = append(result.Results, imaging.SceneImage{SceneID: id, URL: url})
	}
	return merged, result, nil
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	runner := pipeline.NewRunner(store, cliStubPromptGen{}, cliStubImageGen{}, nil, nil)

	d, err := daemon.New(cfg, store, runner, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(t.Context()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		apiAddress: d.APIAddr(),
		baseDir:    testsupport.BaseDir(cfg),
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--api", env.apiAddress, "--config", filepath.Join(env.baseDir, "missing.toml")}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got %q", want, output)
	}
}

func TestCLIProjectWorkflow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "project", "create", "short-film", "--title", "Short Film")
	if err != nil {
		t.Fatalf("project create: %v", err)
	}
	requireContains(t, out, "Created project short-film")

	docPath := filepath.Join(env.baseDir, "document.json")
	docBody := []byte(`{
		"project_id": "short-film",
		"scenes": {
			"scene_001": {"title": "Opening", "natural_description": "A quiet street at dawn."},
			"scene_002": {"title": "Chase", "natural_description": "The courier sprints through traffic."}
		}
	}`)
	if err := os.WriteFile(docPath, docBody, 0o644); err != nil {
		t.Fatalf("write document file: %v", err)
	}

	out, _, err = runCLI(t, env, "document", "push", "short-film", docPath)
	if err != nil {
		t.Fatalf("document push: %v", err)
	}
	requireContains(t, out, "2 scenes")

	out, _, err = runCLI(t, env, "generate", "prompts", "short-film")
	if err != nil {
		t.Fatalf("generate prompts: %v", err)
	}
	requireContains(t, out, "Prompts generated for 2/2 scenes")

	out, _, err = runCLI(t, env, "generate", "images", "short-film")
	if err != nil {
		t.Fatalf("generate images: %v", err)
	}
	requireContains(t, out, "Images generated for 2/2 scenes")

	out, _, err = runCLI(t, env, "version", "save", "short-film", "-m", "first cut")
	if err != nil {
		t.Fatalf("version save: %v", err)
	}
	requireContains(t, out, "Saved version 1")

	out, _, err = runCLI(t, env, "version", "list", "short-film")
	if err != nil {
		t.Fatalf("version list: %v", err)
	}
	requireContains(t, out, "first cut")

	out, _, err = runCLI(t, env, "phases", "short-film")
	if err != nil {
		t.Fatalf("phases: %v", err)
	}
	requireContains(t, out, "scene-video")
}

func TestCLIStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running")
	requireContains(t, out, env.apiAddress)
}

func TestCLIGenerateRequiresScenes(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env, "project", "create", "bare"); err != nil {
		t.Fatalf("project create: %v", err)
	}
	if _, _, err := runCLI(t, env, "generate", "prompts", "bare"); err == nil {
		t.Fatal("expected prompt generation against an empty document to fail")
	}
}
