package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LocalUploader writes files to a directory that the HTTP server exposes under a URL prefix.
type LocalUploader struct {
	dir       string
	urlPrefix string
	now       func() time.Time
}

// NewLocalUploader creates the upload directory if needed.
func NewLocalUploader(dir, urlPrefix string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &LocalUploader{dir: dir, urlPrefix: urlPrefix, now: time.Now}, nil
}

// Upload stores file as <unix millis>-<name>. The folder is flattened into the
// name so that everything stays servable from the single static mount.
func (u *LocalUploader) Upload(ctx context.Context, folder string, file File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := strconv.FormatInt(u.now().UnixMilli(), 10) + "-" + safeName(filepath.Base(file.Name))
	if folder != "" {
		name = safeName(filepath.Base(folder)) + "-" + name
	}

	dst, err := os.Create(filepath.Join(u.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file.Content); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return u.urlPrefix + "/" + name, nil
}

// safeName keeps letters, digits, dots, dashes and underscores so the stored
// name is also a valid URL path segment.
func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
