// Package mesh provides the library's mesh record and its binary file codec.
package mesh

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/libforge/internal/engine/gpu"
)

// Mesh data errors.
var (
	ErrEmptyInput      = errors.New("empty mesh input")
	ErrIncompleteMesh  = errors.New("mesh is missing positions, indices, normals or texture coordinates")
	ErrStreamMismatch  = errors.New("vertex stream lengths differ")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrPartialFace     = errors.New("index count is not a multiple of 3")
)

// DefaultColor is the material color used when a source material has none.
var DefaultColor = mgl32.Vec4{1, 1, 1, 1}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Mesh owns the geometry of one library mesh and its material metadata.
type Mesh struct {
	positions []mgl32.Vec3
	indices   []uint32
	normals   []mgl32.Vec3
	texCoords []mgl32.Vec2

	Diffuse            mgl32.Vec4
	Specular           mgl32.Vec4
	Ambient            mgl32.Vec4
	DiffuseTexturePath string

	handles  gpu.MeshHandles
	uploader gpu.Uploader
	holders  int
}

// New returns an empty mesh with default material colors.
func New() *Mesh {
	return &Mesh{
		Diffuse:  DefaultColor,
		Specular: DefaultColor,
		Ambient:  DefaultColor,
	}
}

// SetPositions replaces the vertex positions with a copy of p.
func (m *Mesh) SetPositions(p []mgl32.Vec3) error {
	if len(p) == 0 {
		return fmt.Errorf("positions: %w", ErrEmptyInput)
	}
	m.positions = append([]mgl32.Vec3(nil), p...)
	return nil
}

// SetIndices replaces the triangle indices with a copy of idx.
func (m *Mesh) SetIndices(idx []uint32) error {
	if len(idx) == 0 {
		return fmt.Errorf("indices: %w", ErrEmptyInput)
	}
	m.indices = append([]uint32(nil), idx...)
	return nil
}

// SetNormals replaces the vertex normals with a copy of n.
func (m *Mesh) SetNormals(n []mgl32.Vec3) error {
	if len(n) == 0 {
		return fmt.Errorf("normals: %w", ErrEmptyInput)
	}
	m.normals = append([]mgl32.Vec3(nil), n...)
	return nil
}

// SetTexCoords replaces the texture coordinates with a copy of uv.
func (m *Mesh) SetTexCoords(uv []mgl32.Vec2) error {
	if len(uv) == 0 {
		return fmt.Errorf("texture coordinates: %w", ErrEmptyInput)
	}
	m.texCoords = append([]mgl32.Vec2(nil), uv...)
	return nil
}

// Positions returns the vertex positions. The slice must not be modified.
func (m *Mesh) Positions() []mgl32.Vec3 { return m.positions }

// Indices returns the triangle indices. The slice must not be modified.
func (m *Mesh) Indices() []uint32 { return m.indices }

// Normals returns the vertex normals. The slice must not be modified.
func (m *Mesh) Normals() []mgl32.Vec3 { return m.normals }

// TexCoords returns the texture coordinates. The slice must not be modified.
func (m *Mesh) TexCoords() []mgl32.Vec2 { return m.texCoords }

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.positions) }

// IndexCount returns the number of indices.
func (m *Mesh) IndexCount() int { return len(m.indices) }

// FaceCount returns the number of triangles.
func (m *Mesh) FaceCount() int { return len(m.indices) / 3 }

// Validate checks the mesh invariants.
func (m *Mesh) Validate() error {
	if len(m.positions) == 0 || len(m.indices) == 0 || len(m.normals) == 0 || len(m.texCoords) == 0 {
		return ErrIncompleteMesh
	}
	if len(m.normals) != len(m.positions) || len(m.texCoords) != len(m.positions) {
		return fmt.Errorf("%w: %d positions, %d normals, %d texcoords",
			ErrStreamMismatch, len(m.positions), len(m.normals), len(m.texCoords))
	}
	if len(m.indices)%3 != 0 {
		return fmt.Errorf("%w: %d", ErrPartialFace, len(m.indices))
	}
	return checkIndices(m.indices, uint32(len(m.positions)))
}

func checkIndices(indices []uint32, vertexCount uint32) error {
	for i, idx := range indices {
		if idx >= vertexCount {
			return fmt.Errorf("%w: index %d at %d, %d vertices", ErrIndexOutOfRange, idx, i, vertexCount)
		}
	}
	return nil
}

// Uploaded reports whether the mesh currently owns GPU buffers.
func (m *Mesh) Uploaded() bool { return m.uploader != nil }

// IsValid reports whether the mesh is uploaded and its data is consistent.
func (m *Mesh) IsValid() bool {
	return m.Uploaded() && m.Validate() == nil
}

// Handles returns the GPU buffer handles of an uploaded mesh.
func (m *Mesh) Handles() gpu.MeshHandles { return m.handles }

// Upload validates the mesh and hands its arrays to u. A previous upload is
// released first.
func (m *Mesh) Upload(u gpu.Uploader) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("cannot upload mesh: %w", err)
	}
	m.releaseGPU()

	h, err := u.UploadMesh(gpu.MeshData{
		Positions: m.positions,
		Normals:   m.normals,
		TexCoords: m.texCoords,
		Indices:   m.indices,
	})
	if err != nil {
		return fmt.Errorf("uploading mesh: %w", err)
	}
	m.handles = h
	m.uploader = u
	return nil
}

func (m *Mesh) releaseGPU() {
	if m.uploader != nil {
		m.uploader.ReleaseMesh(m.handles)
	}
	m.uploader = nil
	m.handles = gpu.MeshHandles{}
}

// Release frees GPU buffers and drops all geometry.
func (m *Mesh) Release() {
	m.releaseGPU()
	m.positions = nil
	m.indices = nil
	m.normals = nil
	m.texCoords = nil
}

// Retain records one more holder of m, such as a scene node carrying it.
func (m *Mesh) Retain() { m.holders++ }

// Drop removes one holder and releases m when none is left.
func (m *Mesh) Drop() {
	if m.holders > 0 {
		m.holders--
	}
	if m.holders == 0 {
		m.Release()
	}
}

// Holders returns the number of holders recorded by Retain.
func (m *Mesh) Holders() int { return m.holders }

// Bounds returns the bounding box of the positions.
func (m *Mesh) Bounds() Bounds {
	if len(m.positions) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: m.positions[0], Max: m.positions[0]}
	for _, p := range m.positions[1:] {
		for i := 0; i < 3; i++ {
			b.Min[i] = min(b.Min[i], p[i])
			b.Max[i] = max(b.Max[i], p[i])
		}
	}
	return b
}
