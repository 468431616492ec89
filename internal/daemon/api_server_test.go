package daemon_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"storyboard/internal/config"
	"storyboard/internal/daemon"
	"storyboard/internal/pipeline"
	"storyboard/internal/testsupport"
)

func startDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, string) {
	t.Helper()

	store := testsupport.MustOpenStore(t, cfg)
	runner := pipeline.NewRunner(store, stubPromptGen{}, stubImageGen{}, nil, nil)
	d, err := daemon.New(cfg, store, runner, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, "http://" + d.APIAddr()
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPIProjectLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, base := startDaemon(t, cfg)

	resp := postJSON(t, base+"/api/projects", map[string]string{"project_id": "proj-1", "title": "Test Board"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project status = %d", resp.StatusCode)
	}

	docBody := []byte(`{
		"project_id": "proj-1",
		"scenes": {
			"scene_001": {"title": "Opening", "natural_description": "A quiet street at dawn."},
			"scene_002": {"title": "Chase", "natural_description": "The courier sprints through traffic."}
		}
	}`)
	req, err := http.NewRequest(http.MethodPut, base+"/api/projects/proj-1/document", bytes.NewReader(docBody))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	putResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT document: %v", err)
	}
	defer putResp.Body.Close()
	if putResp.StatusCode != http.StatusOK {
		t.Fatalf("put document status = %d", putResp.StatusCode)
	}

	resp = postJSON(t, base+"/api/projects/proj-1/generate/prompts", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate prompts status = %d", resp.StatusCode)
	}
	var stage struct {
		Result struct {
			Total            int `json:"total"`
			SuccessfulScenes int `json:"successful_scenes"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stage); err != nil {
		t.Fatalf("decode prompt stage response: %v", err)
	}
	if stage.Result.Total != 2 || stage.Result.SuccessfulScenes != 2 {
		t.Fatalf("unexpected prompt stage result %+v", stage.Result)
	}

	resp = postJSON(t, base+"/api/projects/proj-1/versions", map[string]string{"description": "after prompts"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("save version status = %d", resp.StatusCode)
	}
	var saved struct {
		Version struct {
			Number int `json:"version_number"`
		} `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		t.Fatalf("decode save response: %v", err)
	}
	if saved.Version.Number != 1 {
		t.Fatalf("expected version 1, got %d", saved.Version.Number)
	}

	getResp, err := http.Get(base + "/api/projects/proj-1/document")
	if err != nil {
		t.Fatalf("GET document: %v", err)
	}
	defer getResp.Body.Close()
	var fetched struct {
		Document struct {
			CurrentVersion int `json:"current_version"`
		} `json:"document"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode document response: %v", err)
	}
	if fetched.Document.CurrentVersion != 1 {
		t.Fatalf("expected current version 1, got %d", fetched.Document.CurrentVersion)
	}
}

func TestAPIGenerateRejectsLockedPhase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, base := startDaemon(t, cfg)

	resp := postJSON(t, base+"/api/projects", map[string]string{"project_id": "empty", "title": "No Scenes"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project status = %d", resp.StatusCode)
	}

	resp = postJSON(t, base+"/api/projects/empty/generate/prompts", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for locked phase, got %d", resp.StatusCode)
	}
}

func TestAPIUnknownProjectReturnsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, base := startDaemon(t, cfg)

	resp, err := http.Get(base + "/api/projects/missing/document")
	if err != nil {
		t.Fatalf("GET document: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAPIBearerTokenAuth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = "secret-token"
	_, base := startDaemon(t, cfg)

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, base+"/api/status", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET status with token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
}
