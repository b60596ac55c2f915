package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Local {
	t.Helper()
	store, err := NewLocal(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return store
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNewLocal_CreatesDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")

	_, err := NewLocal(dir)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "thumbs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSave_TextFile(t *testing.T) {
	store := newTestStore(t)

	stored, err := store.Save(strings.NewReader("reflection notes"), "Notes.TXT", "text/plain")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(stored.Name, ".txt"), "extension is kept and lower-cased")
	assert.Len(t, stored.Name, 32+len(".txt"))
	assert.Equal(t, int64(len("reflection notes")), stored.Size)
	assert.False(t, stored.HasThumbnail)

	data, err := os.ReadFile(store.Path(stored.Name))
	require.NoError(t, err)
	assert.Equal(t, "reflection notes", string(data))

	_, err = os.Stat(store.ThumbPath(stored.Name))
	assert.True(t, os.IsNotExist(err))
}

func TestSave_UniqueNames(t *testing.T) {
	store := newTestStore(t)

	a, err := store.Save(strings.NewReader("a"), "same.pdf", "application/pdf")
	require.NoError(t, err)
	b, err := store.Save(strings.NewReader("b"), "same.pdf", "application/pdf")
	require.NoError(t, err)

	assert.NotEqual(t, a.Name, b.Name)
}

func TestSave_ImageThumbnail(t *testing.T) {
	store := newTestStore(t)

	stored, err := store.Save(bytes.NewReader(encodePNG(t, 400, 100)), "diagram.png", "image/png")
	require.NoError(t, err)
	require.True(t, stored.HasThumbnail)

	f, err := os.Open(store.ThumbPath(stored.Name))
	require.NoError(t, err)
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestSave_JPEGThumbnailKeepsFormat(t *testing.T) {
	store := newTestStore(t)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 150, 600)), nil))

	stored, err := store.Save(&buf, "photo.jpg", "image/jpeg")
	require.NoError(t, err)
	require.True(t, stored.HasThumbnail)

	f, err := os.Open(store.ThumbPath(stored.Name))
	require.NoError(t, err)
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestSave_SmallImageNotUpscaled(t *testing.T) {
	store := newTestStore(t)

	stored, err := store.Save(bytes.NewReader(encodePNG(t, 40, 30)), "icon.png", "image/png")
	require.NoError(t, err)
	require.True(t, stored.HasThumbnail)

	f, err := os.Open(store.ThumbPath(stored.Name))
	require.NoError(t, err)
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 30, cfg.Height)
}

func TestSave_CorruptImageStillStored(t *testing.T) {
	store := newTestStore(t)

	stored, err := store.Save(strings.NewReader("not really a png"), "broken.png", "image/png")
	require.NoError(t, err)

	assert.False(t, stored.HasThumbnail)
	_, err = os.Stat(store.Path(stored.Name))
	assert.NoError(t, err)
	_, err = os.Stat(store.ThumbPath(stored.Name))
	assert.True(t, os.IsNotExist(err))
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	stored, err := store.Save(bytes.NewReader(encodePNG(t, 300, 300)), "a.png", "image/png")
	require.NoError(t, err)
	require.True(t, stored.HasThumbnail)

	require.NoError(t, store.Delete(stored.Name))

	_, err = os.Stat(store.Path(stored.Name))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(store.ThumbPath(stored.Name))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(stored.Name), "deleting again is a no-op")
}

func TestPath_StripsDirectories(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, store.Path("evil.txt"), store.Path("../../evil.txt"))
	assert.Equal(t, store.ThumbPath("evil.txt"), store.ThumbPath("../evil.txt"))
}
