// Package gpu defines the boundary between the asset library and the renderer.
//
// The library never issues draw calls. It hands finished vertex arrays and
// images to an Uploader and keeps the returned handles.
package gpu

import (
	"errors"
	"image"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrEmptyMesh is returned when a mesh without vertices or indices is uploaded.
var ErrEmptyMesh = errors.New("gpu: mesh has no vertices or indices")

// MeshData is the geometry handed to the renderer.
type MeshData struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	TexCoords []mgl32.Vec2
	Indices   []uint32
}

// MeshHandles holds one buffer object per vertex stream.
type MeshHandles struct {
	Vertices  uint32
	Indices   uint32
	Normals   uint32
	TexCoords uint32
}

// Zero reports whether no buffer has been allocated.
func (h MeshHandles) Zero() bool {
	return h == MeshHandles{}
}

// Uploader creates and destroys GPU resources. Implementations are not safe
// for concurrent use; they must be called from the thread owning the context.
type Uploader interface {
	UploadMesh(data MeshData) (MeshHandles, error)
	ReleaseMesh(h MeshHandles)
	UploadTexture(img *image.RGBA) (uint32, error)
	ReleaseTexture(id uint32)
}

// Headless is an Uploader that allocates handle numbers without a GPU.
// It is used by command-line tools and tests.
type Headless struct {
	next     uint32
	meshes   int
	textures int
}

// NewHeadless creates a Headless uploader.
func NewHeadless() *Headless {
	return &Headless{}
}

func (h *Headless) id() uint32 {
	h.next++
	return h.next
}

// UploadMesh validates data and returns fresh handles.
func (h *Headless) UploadMesh(data MeshData) (MeshHandles, error) {
	if len(data.Positions) == 0 || len(data.Indices) == 0 {
		return MeshHandles{}, ErrEmptyMesh
	}
	h.meshes++
	return MeshHandles{
		Vertices:  h.id(),
		Indices:   h.id(),
		Normals:   h.id(),
		TexCoords: h.id(),
	}, nil
}

// ReleaseMesh forgets a mesh.
func (h *Headless) ReleaseMesh(handles MeshHandles) {
	if !handles.Zero() {
		h.meshes--
	}
}

// UploadTexture returns a fresh texture handle.
func (h *Headless) UploadTexture(img *image.RGBA) (uint32, error) {
	if img == nil || img.Bounds().Empty() {
		return 0, errors.New("gpu: empty texture")
	}
	h.textures++
	return h.id(), nil
}

// ReleaseTexture forgets a texture.
func (h *Headless) ReleaseTexture(id uint32) {
	if id != 0 {
		h.textures--
	}
}

// Live returns the number of meshes and textures currently allocated.
func (h *Headless) Live() (meshes, textures int) {
	return h.meshes, h.textures
}
