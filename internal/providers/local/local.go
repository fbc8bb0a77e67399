// ABOUTME: Local filesystem source that loads Terraform documents for scanning.
// ABOUTME: Accepts a single file or a directory, optionally walking subdirectories.

package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jfeddern/TerraSentry/internal/types"
	"github.com/sirupsen/logrus"
)

// ErrNoDocuments is returned when a directory holds no file with an accepted extension
var ErrNoDocuments = errors.New("no Terraform documents found")

// LocalSource discovers Terraform documents on disk
type LocalSource struct {
	root       string
	extensions []string
	recursive  bool
	logger     *logrus.Logger
}

// NewLocalSource creates a source rooted at path. Extensions are matched case-insensitively.
func NewLocalSource(path string, extensions []string, recursive bool, logger *logrus.Logger) *LocalSource {
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}

	return &LocalSource{
		root:       path,
		extensions: normalized,
		recursive:  recursive,
		logger:     logger,
	}
}

func (l *LocalSource) Name() string {
	return "local"
}

// Discover reads every accepted file under the root, sorted by path.
// A root that is a regular file is always loaded, whatever its extension.
func (l *LocalSource) Discover(ctx context.Context) ([]types.Document, error) {
	logger := l.logger.WithField("operation", "discover_documents_local")

	info, err := os.Stat(l.root)
	if err != nil {
		return nil, fmt.Errorf("failed to access Terraform path '%s': %w", l.root, err)
	}

	if !info.IsDir() {
		doc, err := readDocument(l.root)
		if err != nil {
			return nil, err
		}
		return []types.Document{doc}, nil
	}

	var paths []string
	err = filepath.WalkDir(l.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path == l.root {
				return nil
			}
			if !l.recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if l.accepts(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk '%s': %w", l.root, err)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s (extensions %v)", ErrNoDocuments, l.root, l.extensions)
	}

	sort.Strings(paths)

	docs := make([]types.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := readDocument(path)
		if err != nil {
			logger.WithError(err).WithField("path", path).Warn("Skipping unreadable document")
			continue
		}
		docs = append(docs, doc)
	}

	logger.WithFields(logrus.Fields{
		"root":           l.root,
		"document_count": len(docs),
	}).Info("Local document discovery completed")

	return docs, nil
}

func (l *LocalSource) accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range l.extensions {
		if ext == want {
			return true
		}
	}
	return false
}

func readDocument(path string) (types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("failed to read '%s': %w", path, err)
	}
	return types.Document{Path: filepath.ToSlash(path), Content: string(data)}, nil
}

// Concat joins documents into one corpus, each prefixed with a file marker line
func Concat(docs []types.Document) string {
	var sb strings.Builder
	for i, doc := range docs {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "# File: %s\n", doc.Path)
		sb.WriteString(doc.Content)
		if !strings.HasSuffix(doc.Content, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
