package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storyboard/internal/document"
	"storyboard/internal/services"
)

// ListVersions returns the version history for a project, newest first.
// Snapshot payloads are omitted; use GetVersion to load one.
func (s *Store) ListVersions(ctx context.Context, projectID string) ([]*document.Version, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT version_number, description, created_at
         FROM document_versions
         WHERE project_id = ?
         ORDER BY version_number DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var versions []*document.Version
	for rows.Next() {
		var (
			number      int
			description string
			createdRaw  string
		)
		if err := rows.Scan(&number, &description, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, &document.Version{
			ProjectID:   projectID,
			Number:      number,
			Description: description,
			CreatedAt:   parseTimeString(createdRaw),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

// GetVersion loads a single version snapshot.
func (s *Store) GetVersion(ctx context.Context, projectID string, number int) (*document.Version, error) {
	var (
		description string
		snapshot    string
		createdRaw  string
	)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT description, snapshot, created_at
         FROM document_versions
         WHERE project_id = ? AND version_number = ?`,
		projectID,
		number,
	)
	if err := row.Scan(&description, &snapshot, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.Wrap(services.ErrNotFound, "docstore", "version", fmt.Sprintf("version %d of project %s not found", number, projectID), nil)
		}
		return nil, fmt.Errorf("scan version: %w", err)
	}

	doc, err := document.Parse([]byte(snapshot))
	if err != nil {
		return nil, err
	}
	return &document.Version{
		ProjectID:   projectID,
		Number:      number,
		Snapshot:    doc,
		Description: description,
		CreatedAt:   parseTimeString(createdRaw),
	}, nil
}
