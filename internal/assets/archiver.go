package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storyboard/internal/config"
	"storyboard/internal/docstore"
	"storyboard/internal/logging"
	"storyboard/internal/services"
)

const (
	defaultMaxDownloadBytes = 10 << 20
	defaultDownloadTimeout  = 60 * time.Second
)

// ObjectStore is the durable storage an archiver uploads into.
type ObjectStore interface {
	// Put stores data under key and returns a permanent public URL.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Recorder persists provenance rows for archived assets.
type Recorder interface {
	RecordAsset(ctx context.Context, record docstore.AssetRecord) (*docstore.AssetRecord, error)
}

// Provenance carries generation metadata stored alongside the archived copy.
type Provenance struct {
	Provider string
	Model    string
}

// Result is the outcome of one archive call. URL is always usable: the
// durable URL on success, the transient source URL when archiving degraded.
type Result struct {
	URL         string
	StorageKey  string
	ContentType string
	ByteSize    int64
	Fallback    bool
	Warning     string
}

// Archiver fetches transient images and persists durable copies.
type Archiver struct {
	store      ObjectStore
	recorder   Recorder
	httpClient *http.Client
	maxBytes   int64
	logger     *slog.Logger
	now        func() time.Time
}

// ArchiverOption customizes an Archiver.
type ArchiverOption func(*Archiver)

// WithHTTPClient overrides the download HTTP client.
func WithHTTPClient(client *http.Client) ArchiverOption {
	return func(a *Archiver) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// WithMaxDownloadBytes overrides the download size ceiling.
func WithMaxDownloadBytes(limit int64) ArchiverOption {
	return func(a *Archiver) {
		if limit > 0 {
			a.maxBytes = limit
		}
	}
}

// WithClock overrides the timestamp source used for storage keys.
func WithClock(now func() time.Time) ArchiverOption {
	return func(a *Archiver) {
		if now != nil {
			a.now = now
		}
	}
}

// NewArchiver constructs an archiver writing to store and recording
// provenance through recorder.
func NewArchiver(cfg *config.Config, store ObjectStore, recorder Recorder, logger *slog.Logger, opts ...ArchiverOption) *Archiver {
	maxBytes := int64(defaultMaxDownloadBytes)
	timeout := defaultDownloadTimeout
	if cfg != nil {
		if cfg.Assets.MaxDownloadMiB > 0 {
			maxBytes = int64(cfg.Assets.MaxDownloadMiB) << 20
		}
		if cfg.Assets.DownloadTimeoutSeconds > 0 {
			timeout = time.Duration(cfg.Assets.DownloadTimeoutSeconds) * time.Second
		}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	archiver := &Archiver{
		store:      store,
		recorder:   recorder,
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
		logger:     logger.With(logging.String(logging.FieldComponent, "assets")),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(archiver)
	}
	return archiver
}

// Archive fetches sourceURL, uploads a durable copy, and flips the current
// provenance record for (projectID, sceneID). Download and upload failures
// degrade: the transient source URL is returned with a warning so the caller
// can proceed. A provenance write failure after a successful upload keeps the
// durable URL and reports the degraded tracking as a warning.
func (a *Archiver) Archive(ctx context.Context, projectID, sceneID, sourceURL string, prov Provenance) (Result, error) {
	projectID = strings.TrimSpace(projectID)
	sceneID = strings.TrimSpace(sceneID)
	sourceURL = strings.TrimSpace(sourceURL)
	if projectID == "" || sceneID == "" {
		return Result{}, services.Wrap(services.ErrValidation, "assets", "archive", "project id and scene id required", nil)
	}
	if sourceURL == "" {
		return Result{}, services.Wrap(services.ErrValidation, "assets", "archive", "source url required", nil)
	}

	data, contentType, err := a.download(ctx, sourceURL)
	if err != nil {
		return a.degrade(ctx, sceneID, sourceURL, err), nil
	}

	key := a.storageKey(projectID, sceneID, contentType)
	durableURL, err := a.store.Put(ctx, key, contentType, data)
	if err != nil {
		wrapped := services.Wrap(services.ErrStorage, "assets", "archive", fmt.Sprintf("upload %s", key), err)
		return a.degrade(ctx, sceneID, sourceURL, wrapped), nil
	}

	result := Result{
		URL:         durableURL,
		StorageKey:  key,
		ContentType: contentType,
		ByteSize:    int64(len(data)),
	}

	if _, err := a.recorder.RecordAsset(ctx, docstore.AssetRecord{
		ProjectID:   projectID,
		SceneID:     sceneID,
		StorageKey:  key,
		PublicURL:   durableURL,
		SourceURL:   sourceURL,
		ContentType: contentType,
		ByteSize:    result.ByteSize,
		Provider:    prov.Provider,
		Model:       prov.Model,
	}); err != nil {
		// The object exists; losing the provenance row is an accepted
		// inconsistency window rather than a reason to roll back.
		result.Warning = fmt.Sprintf("provenance record failed: %v", err)
		a.logger.WarnContext(ctx, "asset provenance degraded",
			logging.String(logging.FieldSceneID, sceneID),
			logging.String("storage_key", key),
			logging.Error(err))
	}
	return result, nil
}

func (a *Archiver) degrade(ctx context.Context, sceneID, sourceURL string, cause error) Result {
	a.logger.WarnContext(ctx, "asset archive fell back to source url",
		logging.String(logging.FieldSceneID, sceneID),
		logging.Error(cause))
	return Result{
		URL:      sourceURL,
		Fallback: true,
		Warning:  cause.Error(),
	}
}

func (a *Archiver) download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", services.Wrap(services.ErrDownload, "assets", "download", "build request", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", services.Wrap(services.ErrDownload, "assets", "download", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, "", services.Wrap(services.ErrDownload, "assets", "download", fmt.Sprintf("http %d from %s", resp.StatusCode, sourceURL), nil)
	}
	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", services.Wrap(services.ErrDownload, "assets", "download", fmt.Sprintf("unexpected content type %q", contentType), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBytes+1))
	if err != nil {
		return nil, "", services.Wrap(services.ErrDownload, "assets", "download", "read body", err)
	}
	if int64(len(data)) > a.maxBytes {
		return nil, "", services.Wrap(services.ErrDownload, "assets", "download", fmt.Sprintf("payload exceeds %d byte ceiling", a.maxBytes), nil)
	}
	return data, contentType, nil
}

func (a *Archiver) storageKey(projectID, sceneID, contentType string) string {
	return fmt.Sprintf("projects/%s/scenes/%s/frame_%d%s", projectID, sceneID, a.now().UnixMilli(), extensionFor(contentType))
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".img"
	}
}
