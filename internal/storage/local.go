// Package storage keeps evidence attachments on the local filesystem.
package storage

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register the webp decoder

	"github.com/jonathan/otj-helper/internal/types"
)

const (
	// ThumbSize bounds both thumbnail dimensions.
	ThumbSize = 200

	thumbDir = "thumbs"
)

// StoredFile describes a file written by Save.
type StoredFile struct {
	Name         string
	Size         int64
	HasThumbnail bool
}

// Local stores files under a root directory with thumbnails in thumbs/.
type Local struct {
	dir string
}

// NewLocal creates the upload and thumbnail directories if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(filepath.Join(dir, thumbDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Save writes r under a random name that keeps the original extension and, for
// images, renders a thumbnail. A thumbnail failure is logged and the upload
// still succeeds.
func (l *Local) Save(r io.Reader, filename, contentType string) (*StoredFile, error) {
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ToLower(filepath.Ext(filename))
	dest := l.Path(name)

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create stored file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return nil, fmt.Errorf("failed to write stored file: %w", err)
	}

	stored := &StoredFile{Name: name, Size: size}
	if types.IsImage(contentType) {
		if err := l.writeThumbnail(name); err != nil {
			log.Printf("Warning: thumbnail generation failed for %s: %v", name, err)
		} else {
			stored.HasThumbnail = true
		}
	}
	return stored, nil
}

// Path returns the location of a stored file.
func (l *Local) Path(storedName string) string {
	return filepath.Join(l.dir, filepath.Base(storedName))
}

// ThumbPath returns the location of a stored file's thumbnail.
func (l *Local) ThumbPath(storedName string) string {
	return filepath.Join(l.dir, thumbDir, filepath.Base(storedName))
}

// Delete removes a stored file and its thumbnail. Missing files are ignored.
func (l *Local) Delete(storedName string) error {
	for _, path := range []string{l.Path(storedName), l.ThumbPath(storedName)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func (l *Local) writeThumbnail(storedName string) error {
	src, err := os.Open(l.Path(storedName))
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	img, format, err := image.Decode(src)
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := scaleToFit(img, ThumbSize)

	out, err := os.Create(l.ThumbPath(storedName))
	if err != nil {
		return err
	}
	switch format {
	case "jpeg":
		err = jpeg.Encode(out, thumb, &jpeg.Options{Quality: 85})
	case "gif":
		err = gif.Encode(out, thumb, nil)
	default:
		err = png.Encode(out, thumb)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(l.ThumbPath(storedName))
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return nil
}

// scaleToFit shrinks img so neither side exceeds limit, keeping the aspect
// ratio. Smaller images are copied unscaled.
func scaleToFit(img image.Image, limit int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > limit || h > limit {
		if w >= h {
			h = max(1, h*limit/w)
			w = limit
		} else {
			w = max(1, w*limit/h)
			h = limit
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
