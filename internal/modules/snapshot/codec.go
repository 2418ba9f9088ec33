package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/statements/internal/domain"
	"github.com/aristath/statements/internal/frame"
	"github.com/aristath/statements/internal/modules/widetable"
	"github.com/vmihailenco/msgpack/v5"
)

// fileSnapshot is the msgpack envelope of an export. Each table is an
// arrow IPC stream.
type fileSnapshot struct {
	Version  string            `msgpack:"version"`
	LoadedAt time.Time         `msgpack:"loaded_at"`
	Tables   map[string][]byte `msgpack:"tables"`
}

// Encode writes s as msgpack.
func Encode(w io.Writer, s *Snapshot) error {
	out := fileSnapshot{
		Version:  s.Version,
		LoadedAt: s.LoadedAt,
		Tables:   make(map[string][]byte, len(domain.Variants)),
	}
	for _, v := range domain.Variants {
		var buf bytes.Buffer
		if err := frame.WriteIPC(&buf, s.Table(v)); err != nil {
			return fmt.Errorf("failed to encode %s table: %w", v, err)
		}
		out.Tables[string(v)] = buf.Bytes()
	}

	if err := msgpack.NewEncoder(w).Encode(&out); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Decode reads a snapshot written by Encode. The version is kept so a file
// export identifies the build it came from.
func Decode(r io.Reader, source string) (*Snapshot, error) {
	var in fileSnapshot
	if err := msgpack.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	tables := &widetable.Tables{}
	for _, v := range domain.Variants {
		data, ok := in.Tables[string(v)]
		if !ok {
			return nil, fmt.Errorf("snapshot has no %s table", v)
		}
		t, err := frame.ReadIPC(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s table: %w", v, err)
		}
		switch v {
		case domain.VariantTotal:
			tables.Total = t
		case domain.VariantRealized:
			tables.Realized = t
		case domain.VariantUnrealized:
			tables.Unrealized = t
		}
	}
	if tables.Total.Len() != tables.Realized.Len() || tables.Total.Len() != tables.Unrealized.Len() {
		return nil, fmt.Errorf("snapshot tables have %d, %d and %d rows",
			tables.Total.Len(), tables.Realized.Len(), tables.Unrealized.Len())
	}

	return &Snapshot{
		Version:  in.Version,
		LoadedAt: in.LoadedAt,
		Source:   source,
		tables:   tables,
	}, nil
}

// WriteFile encodes s to path, replacing it atomically.
func WriteFile(path string, s *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, s); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

// ReadFile decodes the snapshot at path.
func ReadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f, "file:"+path)
}

// FileLoader loads snapshots from a msgpack export.
type FileLoader struct {
	path string
}

// NewFileLoader creates a loader reading path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Load reads the file. The snapshot keeps the version it was exported with.
func (l *FileLoader) Load(ctx context.Context) (*Snapshot, error) {
	s, err := ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	s.LoadedAt = time.Now().UTC()
	return s, nil
}
