package document

import (
	"encoding/json"
	"fmt"
	"strings"

	"storyboard/internal/services"
)

// Parse decodes a document from its JSON representation. Malformed payloads
// and missing project IDs are validation failures, not transient ones.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, services.Wrap(services.ErrValidation, "document", "parse", "decode document payload", err)
	}
	if strings.TrimSpace(doc.ProjectID) == "" {
		return nil, services.Wrap(services.ErrValidation, "document", "parse", "document payload missing project_id", nil)
	}
	doc.EnsureMaps()
	return &doc, nil
}

// Marshal encodes the document for storage or transport.
func (d *Document) Marshal() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy of the document via a JSON round trip so version
// snapshots and staged mutations never alias the live record.
func (d *Document) Clone() (*Document, error) {
	if d == nil {
		return nil, fmt.Errorf("clone nil document")
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("clone document: %w", err)
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone document: %w", err)
	}
	out.EnsureMaps()
	return &out, nil
}
