package filestore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

const DefaultAvatarSize = 256

// Local writes uploads into a directory served under a public prefix. Images
// are decoded, cropped to a square and re-encoded so stored avatars are
// uniform regardless of what the client sent.
type Local struct {
	dir    string
	prefix string
	size   int
}

var _ app.FileStorage = (*Local)(nil)

func NewLocal(dir, publicPrefix string, size int) (*Local, error) {
	if size <= 0 {
		size = DefaultAvatarSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, prefix: strings.TrimRight(publicPrefix, "/"), size: size}, nil
}

// Dir is where uploads live on disk.
func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name = filepath.Base(name)
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return "", fmt.Errorf("unsupported image %q: %w", name, domain.ErrInvalidArgument)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", domain.ErrInvalidArgument)
	}
	img = imaging.Fill(img, l.size, l.size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, name)); err != nil {
		return "", err
	}
	return path.Join(l.prefix, name), nil
}
