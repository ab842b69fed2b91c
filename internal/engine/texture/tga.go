package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image types.
const (
	TGATypeUncompressed = 2
	TGATypeRLE          = 10
)

const tgaHeaderSize = 18

// ErrTruncatedTGA is returned when the pixel data ends early.
var ErrTruncatedTGA = errors.New("TGA data truncated")

// tgaPixels writes decoded pixels into an RGBA image in file order.
type tgaPixels struct {
	img         *image.RGBA
	width       int
	height      int
	bpp         int
	topToBottom bool
	next        int
}

func (p *tgaPixels) done() bool { return p.next >= p.width*p.height }

// put stores one BGR(A) pixel and advances.
func (p *tgaPixels) put(src []byte) {
	x, y := p.next%p.width, p.next/p.width
	if !p.topToBottom {
		y = p.height - 1 - y
	}
	a := uint8(255)
	if p.bpp == 4 {
		a = src[3]
	}
	p.img.SetRGBA(x, y, color.RGBA{R: src[2], G: src[1], B: src[0], A: a})
	p.next++
}

// DecodeTGA decodes uncompressed (type 2) and RLE (type 10) true-color TGA
// images with 24 or 32 bits per pixel.
func DecodeTGA(data []byte) (*image.RGBA, error) {
	if len(data) < tgaHeaderSize {
		return nil, ErrTruncatedTGA
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bitDepth := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("color-mapped TGA not supported")
	}
	if imageType != TGATypeUncompressed && imageType != TGATypeRLE {
		return nil, fmt.Errorf("unsupported TGA type %d", imageType)
	}
	if bitDepth != 24 && bitDepth != 32 {
		return nil, fmt.Errorf("unsupported TGA bit depth %d", bitDepth)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("TGA has no pixels (%dx%d)", width, height)
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, ErrTruncatedTGA
	}
	src := data[offset:]

	p := &tgaPixels{
		img:         image.NewRGBA(image.Rect(0, 0, width, height)),
		width:       width,
		height:      height,
		bpp:         bitDepth / 8,
		topToBottom: descriptor&0x20 != 0,
	}

	if imageType == TGATypeUncompressed {
		if len(src) < width*height*p.bpp {
			return nil, ErrTruncatedTGA
		}
		for i := 0; !p.done(); i += p.bpp {
			p.put(src[i:])
		}
		return p.img, nil
	}

	i := 0
	for !p.done() {
		if i >= len(src) {
			return nil, ErrTruncatedTGA
		}
		packet := src[i]
		i++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			if i+p.bpp > len(src) {
				return nil, ErrTruncatedTGA
			}
			for k := 0; k < count && !p.done(); k++ {
				p.put(src[i:])
			}
			i += p.bpp
			continue
		}

		for k := 0; k < count && !p.done(); k++ {
			if i+p.bpp > len(src) {
				return nil, ErrTruncatedTGA
			}
			p.put(src[i:])
			i += p.bpp
		}
	}
	return p.img, nil
}

// IsMagentaKey checks if an RGB color matches the magenta transparency key
// used by Ragnarok Online textures. The tolerance absorbs BMP rounding.
func IsMagentaKey(r, g, b uint8) bool {
	return r >= 250 && g <= 10 && b >= 250
}

// ToRGBA converts img to *image.RGBA. When magentaKey is set, magenta
// pixels become transparent black. An *image.RGBA input is keyed in place.
func ToRGBA(img image.Image, magentaKey bool) *image.RGBA {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(bounds)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				rgba.Set(x, y, img.At(x, y))
			}
		}
	}
	if !magentaKey {
		return rgba
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := rgba.PixOffset(x, y)
			if IsMagentaKey(rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2]) {
				copy(rgba.Pix[i:i+4], []byte{0, 0, 0, 0})
			}
		}
	}
	return rgba
}
