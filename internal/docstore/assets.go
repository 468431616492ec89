package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storyboard/internal/services"
)

// AssetRecord is the provenance row for one archived scene asset. Exactly one
// record per (project, scene) pair is current at any time.
type AssetRecord struct {
	ID          int64     `json:"id"`
	ProjectID   string    `json:"project_id"`
	SceneID     string    `json:"scene_id"`
	StorageKey  string    `json:"storage_key"`
	PublicURL   string    `json:"public_url"`
	SourceURL   string    `json:"source_url,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	ByteSize    int64     `json:"byte_size,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	IsCurrent   bool      `json:"is_current"`
	CreatedAt   time.Time `json:"created_at"`
}

const assetColumns = "id, project_id, scene_id, storage_key, public_url, source_url, content_type, byte_size, provider, model, is_current, created_at"

// RecordAsset inserts a new provenance row and flips currency to it. The
// demotion of the previous record and the insert happen in one transaction so
// a reader never observes zero or two current assets for a scene.
func (s *Store) RecordAsset(ctx context.Context, record AssetRecord) (*AssetRecord, error) {
	if strings.TrimSpace(record.ProjectID) == "" || strings.TrimSpace(record.SceneID) == "" {
		return nil, services.Wrap(services.ErrValidation, "docstore", "asset", "project id and scene id required", nil)
	}
	if strings.TrimSpace(record.StorageKey) == "" {
		return nil, services.Wrap(services.ErrValidation, "docstore", "asset", "storage key required", nil)
	}

	var stored *AssetRecord
	err := retryOnBusy(ctx, func() error {
		var recordErr error
		stored, recordErr = s.recordAssetTx(ctx, record)
		return recordErr
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Store) recordAssetTx(ctx context.Context, record AssetRecord) (*AssetRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin asset tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(
		ctx,
		"UPDATE scene_assets SET is_current = 0 WHERE project_id = ? AND scene_id = ? AND is_current = 1",
		record.ProjectID,
		record.SceneID,
	); err != nil {
		return nil, fmt.Errorf("demote current asset: %w", err)
	}

	now := timestampNow()
	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO scene_assets (
            project_id, scene_id, storage_key, public_url, source_url,
            content_type, byte_size, provider, model, is_current, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		record.ProjectID,
		record.SceneID,
		record.StorageKey,
		record.PublicURL,
		record.SourceURL,
		record.ContentType,
		record.ByteSize,
		record.Provider,
		record.Model,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit asset tx: %w", err)
	}

	record.ID = id
	record.IsCurrent = true
	record.CreatedAt = parseTimeString(now)
	return &record, nil
}

// CurrentAsset returns the current provenance record for a scene.
func (s *Store) CurrentAsset(ctx context.Context, projectID, sceneID string) (*AssetRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		"SELECT "+assetColumns+" FROM scene_assets WHERE project_id = ? AND scene_id = ? AND is_current = 1",
		projectID,
		sceneID,
	)
	record, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.Wrap(services.ErrNotFound, "docstore", "asset", fmt.Sprintf("no current asset for scene %s of project %s", sceneID, projectID), nil)
		}
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	return record, nil
}

// AssetHistory returns every provenance record for a scene, newest first.
func (s *Store) AssetHistory(ctx context.Context, projectID, sceneID string) ([]*AssetRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT "+assetColumns+" FROM scene_assets WHERE project_id = ? AND scene_id = ? ORDER BY id DESC",
		projectID,
		sceneID,
	)
	if err != nil {
		return nil, fmt.Errorf("query asset history: %w", err)
	}
	defer rows.Close()

	var records []*AssetRecord
	for rows.Next() {
		record, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset history: %w", err)
	}
	return records, nil
}

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*AssetRecord, error) {
	var (
		record     AssetRecord
		isCurrent  int64
		createdRaw string
	)
	if err := scanner.Scan(
		&record.ID,
		&record.ProjectID,
		&record.SceneID,
		&record.StorageKey,
		&record.PublicURL,
		&record.SourceURL,
		&record.ContentType,
		&record.ByteSize,
		&record.Provider,
		&record.Model,
		&isCurrent,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	record.IsCurrent = isCurrent != 0
	record.CreatedAt = parseTimeString(createdRaw)
	return &record, nil
}
