// Package texture decodes image files and uploads them as GPU textures.
package texture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder registration
	_ "image/png"  // PNG decoder registration
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"  // BMP decoder registration
	_ "golang.org/x/image/tiff" // TIFF decoder registration

	"github.com/Faultbox/libforge/internal/engine/gpu"
)

// Texture is an image uploaded to the GPU.
type Texture struct {
	ID     uint32
	Width  int
	Height int
	Path   string

	uploader gpu.Uploader
}

// Release deletes the GPU texture. It is safe to call more than once.
func (t *Texture) Release() {
	if t.ID != 0 && t.uploader != nil {
		t.uploader.ReleaseTexture(t.ID)
	}
	t.ID = 0
}

// Loader reads image files and uploads them through a gpu.Uploader.
type Loader struct {
	uploader gpu.Uploader
	log      *zap.Logger

	// MagentaKey makes magenta pixels transparent, as Ragnarok Online
	// BMP textures expect.
	MagentaKey bool
}

// NewLoader creates a texture loader.
func NewLoader(u gpu.Uploader, log *zap.Logger) *Loader {
	return &Loader{uploader: u, log: log}
}

// Decode decodes an image file by extension. TGA has no magic number and is
// handled explicitly; other formats go through image.Decode.
func Decode(path string, data []byte) (image.Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".tga") {
		return DecodeTGA(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// Load reads, decodes and uploads the image at path.
func (l *Loader) Load(path string) (*Texture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading texture: %w", err)
	}
	img, err := Decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("decoding texture %s: %w", path, err)
	}

	rgba := ToRGBA(img, l.MagentaKey)
	id, err := l.uploader.UploadTexture(rgba)
	if err != nil {
		return nil, fmt.Errorf("uploading texture %s: %w", path, err)
	}

	b := rgba.Bounds()
	l.log.Debug("texture loaded",
		zap.String("path", path),
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()),
	)
	return &Texture{
		ID:       id,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Path:     path,
		uploader: l.uploader,
	}, nil
}
