package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"storyboard/internal/document"
	"storyboard/internal/services"
)

// WriteOptions selects between a silent content update and an explicit
// versioned save. Description is recorded only when AdvanceVersion is set.
type WriteOptions struct {
	AdvanceVersion bool
	Description    string
}

// versionInsertRetries bounds how often a versioned write is retried when a
// concurrent writer claims the same version number first.
const versionInsertRetries = 3

// CreateProject inserts an empty document for a new project.
func (s *Store) CreateProject(ctx context.Context, projectID, title string) (*document.Document, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, services.Wrap(services.ErrValidation, "docstore", "create", "project id required", nil)
	}

	doc := document.New(projectID)
	doc.Meta.Title = title
	payload, err := doc.Marshal()
	if err != nil {
		return nil, err
	}

	now := timestampNow()
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO documents (project_id, payload, current_version, created_at, updated_at)
         VALUES (?, ?, 0, ?, ?)`,
		projectID,
		string(payload),
		now,
		now,
	)
	if err != nil {
		if isUniqueConflict(err) {
			return nil, services.Wrap(services.ErrConflict, "docstore", "create", fmt.Sprintf("project %s already exists", projectID), err)
		}
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// GetDocument loads the live document for a project.
func (s *Store) GetDocument(ctx context.Context, projectID string) (*document.Document, error) {
	var (
		payload        string
		currentVersion int
	)
	row := s.db.QueryRowContext(
		ctx,
		"SELECT payload, current_version FROM documents WHERE project_id = ?",
		projectID,
	)
	if err := row.Scan(&payload, &currentVersion); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.Wrap(services.ErrNotFound, "docstore", "get", fmt.Sprintf("project %s not found", projectID), nil)
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc, err := document.Parse([]byte(payload))
	if err != nil {
		return nil, err
	}
	doc.CurrentVersion = currentVersion
	return doc, nil
}

// Write persists the document. Every document mutation flows through here:
// silent writes replace the live content only, versioned writes additionally
// cut an immutable snapshot with the next gapless version number. The
// returned version is nil for silent writes.
func (s *Store) Write(ctx context.Context, projectID string, doc *document.Document, opts WriteOptions) (*document.Version, error) {
	if doc == nil {
		return nil, services.Wrap(services.ErrValidation, "docstore", "write", "nil document", nil)
	}
	if strings.TrimSpace(projectID) == "" {
		return nil, services.Wrap(services.ErrValidation, "docstore", "write", "project id required", nil)
	}
	doc.ProjectID = projectID

	if !opts.AdvanceVersion {
		return nil, retryOnBusy(ctx, func() error {
			return s.writeSilent(ctx, projectID, doc)
		})
	}

	var lastErr error
	for attempt := 0; attempt < versionInsertRetries; attempt++ {
		var version *document.Version
		err := retryOnBusy(ctx, func() error {
			var writeErr error
			version, writeErr = s.writeVersioned(ctx, projectID, doc, opts.Description)
			return writeErr
		})
		if err == nil {
			return version, nil
		}
		// A UNIQUE conflict means another writer claimed the version number
		// first; a busy error that outlived its backoff means the same writer
		// is still holding the lock. Both warrant a fresh version read.
		if !isUniqueConflict(err) && !isSQLiteBusy(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, services.Wrap(services.ErrConflict, "docstore", "write", fmt.Sprintf("version number contention for project %s", projectID), lastErr)
}

// WriteSilent replaces the live document content without creating a version.
func (s *Store) WriteSilent(ctx context.Context, projectID string, doc *document.Document) error {
	_, err := s.Write(ctx, projectID, doc, WriteOptions{})
	return err
}

// WriteVersioned saves the document and cuts a new numbered snapshot.
func (s *Store) WriteVersioned(ctx context.Context, projectID string, doc *document.Document, description string) (*document.Version, error) {
	return s.Write(ctx, projectID, doc, WriteOptions{AdvanceVersion: true, Description: description})
}

func (s *Store) writeSilent(ctx context.Context, projectID string, doc *document.Document) error {
	payload, err := doc.Marshal()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(
		ctx,
		"UPDATE documents SET payload = ?, updated_at = ? WHERE project_id = ?",
		string(payload),
		timestampNow(),
		projectID,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "docstore", "write", fmt.Sprintf("project %s not found", projectID), nil)
	}
	return nil
}

func (s *Store) writeVersioned(ctx context.Context, projectID string, doc *document.Document, description string) (*document.Version, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin write tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	row := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM documents WHERE project_id = ?", projectID)
	if err := row.Scan(&exists); err != nil {
		return nil, fmt.Errorf("scan document existence: %w", err)
	}
	if exists == 0 {
		return nil, services.Wrap(services.ErrNotFound, "docstore", "write", fmt.Sprintf("project %s not found", projectID), nil)
	}

	var next int
	row = tx.QueryRowContext(
		ctx,
		"SELECT COALESCE(MAX(version_number), 0) + 1 FROM document_versions WHERE project_id = ?",
		projectID,
	)
	if err := row.Scan(&next); err != nil {
		return nil, fmt.Errorf("scan next version: %w", err)
	}

	doc.CurrentVersion = next
	payload, err := doc.Marshal()
	if err != nil {
		return nil, err
	}

	now := timestampNow()
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO document_versions (project_id, version_number, description, snapshot, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		projectID,
		next,
		description,
		string(payload),
		now,
	); err != nil {
		// Surface UNIQUE conflicts raw so the caller's retry loop sees them.
		return nil, err
	}

	if _, err := tx.ExecContext(
		ctx,
		"UPDATE documents SET payload = ?, current_version = ?, updated_at = ? WHERE project_id = ?",
		string(payload),
		next,
		now,
		projectID,
	); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit write tx: %w", err)
	}

	snapshot, err := doc.Clone()
	if err != nil {
		return nil, err
	}
	return &document.Version{
		ProjectID:   projectID,
		Number:      next,
		Snapshot:    snapshot,
		Description: description,
		CreatedAt:   parseTimeString(now),
	}, nil
}
