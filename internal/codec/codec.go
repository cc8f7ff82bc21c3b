package codec

import (
	"fmt"
	"io"
	"strings"

	"clanstore/internal/domain"
)

// Importer interface for reading snapshots from various formats
type Importer interface {
	Parse(r io.Reader) (*domain.Snapshot, error)
	Format() string
}

// Exporter interface for writing snapshots to various formats
type Exporter interface {
	Export(snapshot *domain.Snapshot, w io.Writer) error
	Format() string
}

// Codec reads and writes one format
type Codec interface {
	Importer
	Exporter
	ContentType() string
}

// ForFormat returns the codec for a format name ("json", "yaml" or "yml")
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}
}
