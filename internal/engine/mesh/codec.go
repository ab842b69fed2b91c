package mesh

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/libforge/internal/engine/gpu"
	"github.com/Faultbox/libforge/pkg/binio"
	"github.com/Faultbox/libforge/pkg/formats"
)

// Mesh file errors.
var (
	ErrTruncatedMesh = errors.New("truncated mesh data")
	ErrInvalidCounts = errors.New("invalid mesh counts (zero vertices or indices)")
)

// HeaderSize is the size of the four element counts that start a mesh body.
const HeaderSize = 16

const colorBlockSize = 3 * 4 * 4

// Counts are the element counts stored in a mesh file header.
type Counts struct {
	Indices   uint32
	Vertices  uint32
	Normals   uint32
	TexCoords uint32
}

// EncodedSize returns the size of the file Encode produces for m.
func EncodedSize(m *Mesh, layout formats.Layout) int {
	return formats.TagSize(layout) + HeaderSize +
		4*len(m.indices) +
		12*len(m.positions) +
		12*len(m.normals) +
		8*len(m.texCoords) +
		colorBlockSize +
		binio.StringSize(m.DiffuseTexturePath)
}

func flattenVec3(vs []mgl32.Vec3) []float32 {
	out := make([]float32, 0, 3*len(vs))
	for _, v := range vs {
		out = append(out, v[0], v[1], v[2])
	}
	return out
}

func flattenVec2(vs []mgl32.Vec2) []float32 {
	out := make([]float32, 0, 2*len(vs))
	for _, v := range vs {
		out = append(out, v[0], v[1])
	}
	return out
}

// Encode serializes m into a new buffer.
func Encode(m *Mesh, layout formats.Layout) ([]byte, error) {
	if m == nil || len(m.positions) == 0 || len(m.indices) == 0 || len(m.normals) == 0 || len(m.texCoords) == 0 {
		return nil, ErrIncompleteMesh
	}
	if err := checkIndices(m.indices, uint32(len(m.positions))); err != nil {
		return nil, err
	}

	w := binio.NewWriter(EncodedSize(m, layout))
	if err := formats.WriteTag(w, formats.MeshMagic, layout); err != nil {
		return nil, err
	}
	counts := []uint32{
		uint32(len(m.indices)),
		uint32(len(m.positions)),
		uint32(len(m.normals)),
		uint32(len(m.texCoords)),
	}
	if err := w.Uint32s(counts); err != nil {
		return nil, err
	}
	if err := w.Uint32s(m.indices); err != nil {
		return nil, err
	}
	if err := w.Float32s(flattenVec3(m.positions)); err != nil {
		return nil, err
	}
	if err := w.Float32s(flattenVec3(m.normals)); err != nil {
		return nil, err
	}
	if err := w.Float32s(flattenVec2(m.texCoords)); err != nil {
		return nil, err
	}
	for _, c := range []mgl32.Vec4{m.Diffuse, m.Specular, m.Ambient} {
		if err := w.Float32s(c[:]); err != nil {
			return nil, err
		}
	}
	if err := w.String(m.DiffuseTexturePath); err != nil {
		return nil, err
	}
	if !w.Full() {
		return nil, fmt.Errorf("mesh buffer has %d unused bytes", w.Remaining())
	}
	return w.Bytes(), nil
}

// WriteFile encodes m and writes it to path, creating parent directories.
func WriteFile(m *Mesh, path string, layout formats.Layout) error {
	data, err := Encode(m, layout)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating mesh directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing mesh file: %w", err)
	}
	return nil
}

// ReadCounts reads the optional tag header and the element counts.
func ReadCounts(r *binio.Reader) (Counts, error) {
	var c Counts
	if _, err := formats.ReadTag(r, formats.MeshMagic); err != nil {
		return c, err
	}
	raw := make([]uint32, 4)
	if err := r.Uint32s(raw); err != nil {
		return c, fmt.Errorf("%w: header: %v", ErrTruncatedMesh, err)
	}
	c = Counts{Indices: raw[0], Vertices: raw[1], Normals: raw[2], TexCoords: raw[3]}
	return c, nil
}

func readVec3s(r *binio.Reader, n uint32) ([]mgl32.Vec3, error) {
	flat := make([]float32, 3*int(n))
	if err := r.Float32s(flat); err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec3, n)
	for i := range out {
		out[i] = mgl32.Vec3{flat[i*3], flat[i*3+1], flat[i*3+2]}
	}
	return out, nil
}

func readVec2s(r *binio.Reader, n uint32) ([]mgl32.Vec2, error) {
	flat := make([]float32, 2*int(n))
	if err := r.Float32s(flat); err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec2, n)
	for i := range out {
		out[i] = mgl32.Vec2{flat[i*2], flat[i*2+1]}
	}
	return out, nil
}

// Decode parses a mesh file.
func Decode(data []byte) (*Mesh, error) {
	r := binio.NewReader(data)
	c, err := ReadCounts(r)
	if err != nil {
		return nil, err
	}
	if c.Indices == 0 || c.Vertices == 0 {
		return nil, ErrInvalidCounts
	}

	// Reject counts the remaining data cannot hold before allocating for them.
	need := 4*uint64(c.Indices) + 12*uint64(c.Vertices) + 12*uint64(c.Normals) + 8*uint64(c.TexCoords) + colorBlockSize + 4
	if !r.Fits(need, 1) {
		return nil, fmt.Errorf("%w: counts %+v need %d bytes, %d left", ErrTruncatedMesh, c, need, r.Len())
	}

	m := New()
	m.indices = make([]uint32, c.Indices)
	if err := r.Uint32s(m.indices); err != nil {
		return nil, fmt.Errorf("%w: indices: %v", ErrTruncatedMesh, err)
	}
	if m.positions, err = readVec3s(r, c.Vertices); err != nil {
		return nil, fmt.Errorf("%w: positions: %v", ErrTruncatedMesh, err)
	}
	if m.normals, err = readVec3s(r, c.Normals); err != nil {
		return nil, fmt.Errorf("%w: normals: %v", ErrTruncatedMesh, err)
	}
	if m.texCoords, err = readVec2s(r, c.TexCoords); err != nil {
		return nil, fmt.Errorf("%w: texture coordinates: %v", ErrTruncatedMesh, err)
	}

	if err := checkIndices(m.indices, c.Vertices); err != nil {
		return nil, err
	}

	for _, dst := range []*mgl32.Vec4{&m.Diffuse, &m.Specular, &m.Ambient} {
		if err := r.Float32s(dst[:]); err != nil {
			return nil, fmt.Errorf("%w: material colors: %v", ErrTruncatedMesh, err)
		}
	}

	if m.DiffuseTexturePath, err = r.String(); err != nil {
		return nil, fmt.Errorf("%w: texture path: %v", ErrTruncatedMesh, err)
	}
	return m, nil
}

// ReadFile reads and decodes a mesh file.
func ReadFile(path string) (*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mesh file: %w", err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return m, nil
}

// Load reads a mesh file and uploads it. The mesh is only returned if both
// steps succeed.
func Load(path string, u gpu.Uploader) (*Mesh, error) {
	m, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := m.Upload(u); err != nil {
		m.Release()
		return nil, fmt.Errorf("initializing %s: %w", path, err)
	}
	return m, nil
}
