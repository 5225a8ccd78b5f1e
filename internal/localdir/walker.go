package localdir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrNotDirectory is returned by Walk when root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// fileBanner is the line of hashes that frames each file header.
var fileBanner = "#" + strings.Repeat("#", 10)

// Walker writes the allowed files of a directory tree to a corpus.
type Walker struct {
	filter Filter
	logger *slog.Logger
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithFilter replaces DefaultFilter.
func WithFilter(f Filter) WalkerOption {
	return func(w *Walker) {
		w.filter = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) WalkerOption {
	return func(w *Walker) {
		w.logger = logger
	}
}

// NewWalker creates a Walker.
func NewWalker(opts ...WalkerOption) *Walker {
	w := &Walker{filter: DefaultFilter()}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Walk writes one block per allowed file under root to out and returns the
// paths written, in walk order.
//
// Directories are visited in pre-order with entries sorted by name: the
// files of a directory come first, then each non-excluded subdirectory in
// turn. Unreadable files and subdirectories are logged and skipped.
func (w *Walker) Walk(ctx context.Context, root string, out io.Writer) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("walk %s: %w", root, ErrNotDirectory)
	}

	processed := make([]string, 0)

	// stack holds directories relative to root; "." is the root itself.
	stack := []string{"."}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		rel := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		dir := filepath.Join(root, rel)

		entries, err := os.ReadDir(dir)
		if err != nil {
			if rel == "." {
				return processed, fmt.Errorf("walk %s: %w", root, err)
			}
			w.logger.Warn("cannot read directory", "path", dir, "error", err)
			continue
		}

		subdirs := make([]string, 0)
		for _, entry := range entries {
			childRel := filepath.Join(rel, entry.Name())

			if entry.IsDir() {
				if w.filter.ExcludeDir(childRel) {
					w.logger.Debug("excluding directory", "path", childRel)
					continue
				}
				subdirs = append(subdirs, childRel)
				continue
			}

			if !entry.Type().IsRegular() || !w.filter.AllowFile(entry.Name()) {
				continue
			}

			path := filepath.Join(root, childRel)
			if err := w.writeFile(out, path); err != nil {
				var pathErr *os.PathError
				if errors.As(err, &pathErr) {
					w.logger.Warn("cannot read file", "path", path, "error", err)
					continue
				}
				return processed, err
			}
			w.logger.Info("processed", "path", path)
			processed = append(processed, path)
		}

		// Push in reverse so the first subdirectory is visited next.
		slices.Reverse(subdirs)
		stack = append(stack, subdirs...)
	}

	return processed, nil
}

// writeFile writes the header and content block for one file.
func (w *Walker) writeFile(out io.Writer, path string) error {
	content, err := ReadText(path)
	if err != nil {
		return err
	}

	if strings.HasSuffix(path, ".ipynb") {
		if script, err := renderNotebook([]byte(content)); err == nil {
			content = script
		} else {
			w.logger.Debug("notebook kept as raw json", "path", path, "error", err)
		}
	}

	block := fileBanner + "\n# FILE - " + path + ":\n" + fileBanner + "\n\n" + content + "\n"
	if _, err := io.WriteString(out, block); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadText reads a text file as UTF-8, falling back to Latin-1 when the
// content is not valid UTF-8.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return string(decoded), nil
}
