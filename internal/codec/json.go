package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"clanstore/internal/domain"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// ContentType returns the MIME type of the encoding
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Parse imports a snapshot from JSON
func (c *JSONCodec) Parse(r io.Reader) (*domain.Snapshot, error) {
	snapshot := domain.NewSnapshot()
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	for _, claim := range snapshot.Claims {
		if len(claim.ChunkKeys) == 0 {
			claim.ChunkKeys = claim.Box.ChunkKeys()
		}
	}
	return snapshot, nil
}

// Export exports a snapshot to JSON
func (c *JSONCodec) Export(snapshot *domain.Snapshot, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
