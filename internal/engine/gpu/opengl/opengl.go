// Package opengl implements gpu.Uploader on top of an OpenGL 4.1 core context.
package opengl

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/libforge/internal/engine/gpu"
)

// Uploader uploads meshes and textures into OpenGL buffer objects.
// IMPORTANT: Must be created AFTER an OpenGL context is current!
type Uploader struct {
	log *zap.Logger
}

var _ gpu.Uploader = (*Uploader)(nil)

// New initializes the OpenGL function pointers for the current context.
func New(log *zap.Logger) (*Uploader, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)
	return &Uploader{log: log}, nil
}

func bufferData(target uint32, size int, ptr unsafe.Pointer) uint32 {
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(target, id)
	gl.BufferData(target, size, ptr, gl.STATIC_DRAW)
	return id
}

// UploadMesh creates one static buffer per vertex stream plus an element buffer.
func (g *Uploader) UploadMesh(data gpu.MeshData) (gpu.MeshHandles, error) {
	if len(data.Positions) == 0 || len(data.Indices) == 0 {
		return gpu.MeshHandles{}, gpu.ErrEmptyMesh
	}

	// Drain stale errors so the check below only sees ours.
	for gl.GetError() != gl.NO_ERROR {
	}

	var h gpu.MeshHandles
	h.Vertices = bufferData(gl.ARRAY_BUFFER, len(data.Positions)*12, unsafe.Pointer(&data.Positions[0]))
	h.Indices = bufferData(gl.ELEMENT_ARRAY_BUFFER, len(data.Indices)*4, unsafe.Pointer(&data.Indices[0]))
	if len(data.Normals) > 0 {
		h.Normals = bufferData(gl.ARRAY_BUFFER, len(data.Normals)*12, unsafe.Pointer(&data.Normals[0]))
	}
	if len(data.TexCoords) > 0 {
		h.TexCoords = bufferData(gl.ARRAY_BUFFER, len(data.TexCoords)*8, unsafe.Pointer(&data.TexCoords[0]))
	}

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		g.ReleaseMesh(h)
		return gpu.MeshHandles{}, fmt.Errorf("opengl: mesh upload failed with GL error 0x%x", code)
	}

	g.log.Debug("mesh uploaded",
		zap.Int("vertices", len(data.Positions)),
		zap.Int("indices", len(data.Indices)),
	)
	return h, nil
}

// ReleaseMesh deletes the buffers in h.
func (g *Uploader) ReleaseMesh(h gpu.MeshHandles) {
	for _, id := range []uint32{h.Vertices, h.Indices, h.Normals, h.TexCoords} {
		if id != 0 {
			gl.DeleteBuffers(1, &id)
		}
	}
}

// UploadTexture creates a mipmapped RGBA texture.
func (g *Uploader) UploadTexture(img *image.RGBA) (uint32, error) {
	if img == nil || img.Bounds().Empty() {
		return 0, fmt.Errorf("opengl: empty texture")
	}

	var texID uint32
	gl.GenTextures(1, &texID)
	gl.BindTexture(gl.TEXTURE_2D, texID)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(img.Bounds().Dx()), int32(img.Bounds().Dy()), 0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteTextures(1, &texID)
		return 0, fmt.Errorf("opengl: texture upload failed with GL error 0x%x", code)
	}
	return texID, nil
}

// ReleaseTexture deletes a texture.
func (g *Uploader) ReleaseTexture(id uint32) {
	if id != 0 {
		gl.DeleteTextures(1, &id)
	}
}
