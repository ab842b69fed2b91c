package texture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/image/bmp"

	"github.com/Faultbox/libforge/internal/engine/gpu"
)

func tgaHeader(imageType byte, width, height int, bitDepth byte, descriptor byte) []byte {
	h := make([]byte, tgaHeaderSize)
	h[2] = imageType
	h[12], h[13] = byte(width), byte(width>>8)
	h[14], h[15] = byte(height), byte(height>>8)
	h[16] = bitDepth
	h[17] = descriptor
	return h
}

func TestDecodeTGAUncompressed(t *testing.T) {
	// 2x1, bottom-up: blue then red (stored BGR).
	data := tgaHeader(TGATypeUncompressed, 2, 1, 24, 0)
	data = append(data, 255, 0, 0, 0, 0, 255)

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA failed: %v", err)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("pixel 0 = %v, want blue", got)
	}
	if got := img.RGBAAt(1, 0); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("pixel 1 = %v, want red", got)
	}
}

func TestDecodeTGAOrientation(t *testing.T) {
	// 1x2, 32-bit. First stored row is the bottom one unless bit 5 is set.
	pixels := []byte{0, 255, 0, 255, 0, 0, 255, 128}

	bottomUp, err := DecodeTGA(append(tgaHeader(TGATypeUncompressed, 1, 2, 32, 0), pixels...))
	if err != nil {
		t.Fatal(err)
	}
	if got := bottomUp.RGBAAt(0, 1); got != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("bottom-up first row should land at y=1, got %v", got)
	}

	topDown, err := DecodeTGA(append(tgaHeader(TGATypeUncompressed, 1, 2, 32, 0x20), pixels...))
	if err != nil {
		t.Fatal(err)
	}
	if got := topDown.RGBAAt(0, 1); got != (color.RGBA{255, 0, 0, 128}) {
		t.Errorf("top-down second row should land at y=1, got %v", got)
	}
}

func TestDecodeTGARLE(t *testing.T) {
	// 4x1: run of 3 green pixels, then one raw white pixel.
	data := tgaHeader(TGATypeRLE, 4, 1, 24, 0x20)
	data = append(data, 0x82, 0, 255, 0)
	data = append(data, 0x00, 255, 255, 255)

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA failed: %v", err)
	}
	for x := 0; x < 3; x++ {
		if got := img.RGBAAt(x, 0); got != (color.RGBA{0, 255, 0, 255}) {
			t.Errorf("pixel %d = %v, want green", x, got)
		}
	}
	if got := img.RGBAAt(3, 0); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("pixel 3 = %v, want white", got)
	}
}

func TestDecodeTGAErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short header", []byte{0, 0, 2}},
		{"color mapped", func() []byte { h := tgaHeader(TGATypeUncompressed, 1, 1, 24, 0); h[1] = 1; return h }()},
		{"grayscale", tgaHeader(3, 1, 1, 8, 0)},
		{"16 bit", tgaHeader(TGATypeUncompressed, 1, 1, 16, 0)},
		{"zero size", tgaHeader(TGATypeUncompressed, 0, 1, 24, 0)},
		{"truncated pixels", append(tgaHeader(TGATypeUncompressed, 2, 2, 24, 0), 1, 2, 3)},
		{"truncated rle", append(tgaHeader(TGATypeRLE, 4, 1, 24, 0), 0x83, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeTGA(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestToRGBAMagentaKey(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.NRGBA{255, 0, 255, 255})
	src.Set(1, 0, color.NRGBA{10, 20, 30, 255})

	keyed := ToRGBA(src, true)
	if got := keyed.RGBAAt(0, 0); got != (color.RGBA{}) {
		t.Errorf("magenta should be transparent, got %v", got)
	}
	if got := keyed.RGBAAt(1, 0); got != (color.RGBA{10, 20, 30, 255}) {
		t.Errorf("other pixels should be unchanged, got %v", got)
	}

	plain := ToRGBA(src, false)
	if got := plain.RGBAAt(0, 0); got != (color.RGBA{255, 0, 255, 255}) {
		t.Errorf("without key magenta should stay, got %v", got)
	}
}

func writeImage(t *testing.T, path string, encode func(*bytes.Buffer, image.Image) error) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for i := range img.Pix {
		img.Pix[i] = 200
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}
	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "wall.png")
	bmpPath := filepath.Join(dir, "wall.bmp")
	writeImage(t, pngPath, func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) })
	writeImage(t, bmpPath, func(b *bytes.Buffer, img image.Image) error { return bmp.Encode(b, img) })

	up := gpu.NewHeadless()
	l := NewLoader(up, zap.NewNop())

	for _, path := range []string{pngPath, bmpPath} {
		tex, err := l.Load(path)
		if err != nil {
			t.Fatalf("Load(%s) failed: %v", path, err)
		}
		if tex.ID == 0 || tex.Width != 4 || tex.Height != 2 {
			t.Errorf("Load(%s) = %+v", path, tex)
		}
		if tex.Path != path {
			t.Errorf("Path = %q, want %q", tex.Path, path)
		}
	}
	if _, textures := up.Live(); textures != 2 {
		t.Errorf("expected 2 live textures, got %d", textures)
	}
}

func TestLoaderErrors(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(gpu.NewHeadless(), zap.NewNop())

	if _, err := l.Load(filepath.Join(dir, "missing.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}

	junk := filepath.Join(dir, "junk.png")
	if err := os.WriteFile(junk, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Load(junk); err == nil {
		t.Error("expected decode error")
	}
}

func TestTextureReleaseTwice(t *testing.T) {
	up := gpu.NewHeadless()
	tga := filepath.Join(t.TempDir(), "px.tga")
	data := append(tgaHeader(TGATypeUncompressed, 1, 1, 24, 0), 1, 2, 3)
	if err := os.WriteFile(tga, data, 0644); err != nil {
		t.Fatal(err)
	}

	tex, err := NewLoader(up, zap.NewNop()).Load(tga)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	tex.Release()
	tex.Release()
	if _, textures := up.Live(); textures != 0 {
		t.Errorf("expected 0 live textures, got %d", textures)
	}
}
