package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"storyboard/internal/document"
	"storyboard/internal/imaging"
	"storyboard/internal/logging"
	"storyboard/internal/phases"
	"storyboard/internal/prompting"
	"storyboard/internal/services"
)

const maxDocumentBody = 8 << 20

type createProjectRequest struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
}

type saveVersionRequest struct {
	Description string `json:"description"`
}

type generateRequest struct {
	SceneIDs []string `json:"scene_ids"`
}

type documentResponse struct {
	Document *document.Document `json:"document"`
	Phases   []phases.State     `json:"phases"`
}

type promptStageResponse struct {
	Result prompting.BulkResult `json:"result"`
	Phases []phases.State       `json:"phases"`
}

type imageStageResponse struct {
	Result imaging.BulkResult `json:"result"`
	Phases []phases.State     `json:"phases"`
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.StatusContext(r.Context()))
}

func (s *apiServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxDocumentBody)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doc, err := s.daemon.store.CreateProject(r.Context(), req.ProjectID, req.Title)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, documentResponse{Document: doc, Phases: phases.Evaluate(doc)})
}

func (s *apiServer) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, states, err := s.daemon.runner.Status(r.Context(), r.PathValue("projectID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, documentResponse{Document: doc, Phases: states})
}

func (s *apiServer) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read request body")
		return
	}
	doc, err := document.Parse(body)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if err := s.daemon.store.WriteSilent(r.Context(), projectID, doc); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, documentResponse{Document: doc, Phases: phases.Evaluate(doc)})
}

func (s *apiServer) handlePhases(w http.ResponseWriter, r *http.Request) {
	_, states, err := s.daemon.runner.Status(r.Context(), r.PathValue("projectID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]phases.State{"phases": states})
}

func (s *apiServer) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.daemon.store.ListVersions(r.Context(), r.PathValue("projectID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (s *apiServer) handleSaveVersion(w http.ResponseWriter, r *http.Request) {
	var req saveVersionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxDocumentBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	version, states, err := s.daemon.runner.SaveVersion(r.Context(), r.PathValue("projectID"), strings.TrimSpace(req.Description))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"version": version, "phases": states})
}

func (s *apiServer) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid version number")
		return
	}
	version, err := s.daemon.store.GetVersion(r.Context(), r.PathValue("projectID"), number)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"version": version})
}

func (s *apiServer) handleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid version number")
		return
	}
	version, err := s.daemon.runner.RestoreVersion(r.Context(), r.PathValue("projectID"), number)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"version": version})
}

func (s *apiServer) handleGeneratePrompts(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGenerateRequest(w, r)
	if !ok {
		return
	}
	result, states, err := s.daemon.runner.RunPromptStage(r.Context(), r.PathValue("projectID"), req.SceneIDs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, promptStageResponse{Result: result, Phases: states})
}

func (s *apiServer) handleGenerateImages(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGenerateRequest(w, r)
	if !ok {
		return
	}
	logger := s.log()
	result, states, err := s.daemon.runner.RunImageStage(r.Context(), r.PathValue("projectID"), req.SceneIDs, func(progress imaging.Progress) {
		logger.Debug("image batch progress",
			logging.Int("completed", progress.Completed),
			logging.Int("total", progress.Total),
			logging.String("current_scene", progress.CurrentScene))
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, imageStageResponse{Result: result, Phases: states})
}

func (s *apiServer) handleSceneAssets(w http.ResponseWriter, r *http.Request) {
	history, err := s.daemon.store.AssetHistory(r.Context(), r.PathValue("projectID"), r.PathValue("sceneID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"assets": history})
}

func (s *apiServer) decodeGenerateRequest(w http.ResponseWriter, r *http.Request) (generateRequest, bool) {
	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxDocumentBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrConflict):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrProvider):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
