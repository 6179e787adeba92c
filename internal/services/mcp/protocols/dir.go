package protocols

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// DefaultDir is scanned when no protocol directory is configured.
	DefaultDir = "./protocols"
	// FileExtension marks protocol source files.
	FileExtension = ".tx3"
)

// DirLoader serves a snapshot of the protocol files found in a directory.
// The snapshot is taken once at construction and never mutated, so one
// loader is safe to share across requests.
type DirLoader struct {
	dir  string
	defs []Definition
}

var _ Loader = (*DirLoader)(nil)

// NewDirLoader scans dir for protocol files. Entries that cannot be read are
// logged and skipped; only a failure to list the directory is an error.
func NewDirLoader(dir string) (*DirLoader, error) {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultDir
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read protocols dir %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	defs := make([]Definition, 0, len(entries))
	for _, entry := range entries {
		fileName := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(fileName, FileExtension) {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, fileName))
		if err != nil {
			log.Printf("skip protocol file=%s: %v", fileName, err)
			continue
		}
		defs = append(defs, Definition{
			Name:   NormalizeName(strings.TrimSuffix(fileName, FileExtension)),
			Source: string(content),
		})
	}
	return &DirLoader{dir: dir, defs: dedupe(defs)}, nil
}

// Dir returns the scanned directory.
func (l *DirLoader) Dir() string {
	return l.dir
}

// Load returns a copy of the snapshot.
func (l *DirLoader) Load(context.Context) ([]Definition, error) {
	out := make([]Definition, len(l.defs))
	copy(out, l.defs)
	return out, nil
}
