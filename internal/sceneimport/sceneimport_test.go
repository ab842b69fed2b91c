package sceneimport

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// writeQuadGLB writes a scene with one mesh of two primitives. The first
// primitive is textured, the second has positions only.
func writeQuadGLB(t *testing.T, path string) {
	t.Helper()
	doc := gltf.NewDocument()

	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}})
	idx := modeler.WriteIndices(doc, []uint32{0, 1, 2, 1, 3, 2})
	uv := modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}})

	doc.Images = append(doc.Images, &gltf.Image{URI: "textures/brick.png"})
	doc.Textures = append(doc.Textures, &gltf.Texture{Source: gltf.Index(0)})
	doc.Materials = append(doc.Materials, &gltf.Material{
		Name: "brick",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor:  &[4]float32{0.5, 0.25, 1, 1},
			BaseColorTexture: &gltf.TextureInfo{Index: 0},
		},
	})

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: "quad",
		Primitives: []*gltf.Primitive{
			{
				Indices:    gltf.Index(idx),
				Attributes: map[string]uint32{"POSITION": pos, "TEXCOORD_0": uv},
				Material:   gltf.Index(0),
			},
			{
				Indices:    gltf.Index(idx),
				Attributes: map[string]uint32{"POSITION": pos},
			},
		},
	})

	doc.Nodes = append(doc.Nodes,
		&gltf.Node{Name: "house", Children: []uint32{1, 2}},
		&gltf.Node{Name: "walls", Mesh: gltf.Index(0)},
		&gltf.Node{Name: "marker"},
	)
	doc.Scenes[0].Nodes = []uint32{0}

	require.NoError(t, gltf.SaveBinary(doc, path))
}

func TestGLTFImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "house.glb")
	writeQuadGLB(t, path)

	s, err := NewGLTFImporter(zap.NewNop()).Import(path)
	require.NoError(t, err)

	require.Len(t, s.Meshes, 2)
	assert.Equal(t, "quad_0", s.Meshes[0].Name)
	assert.Len(t, s.Meshes[0].Positions, 4)
	assert.Len(t, s.Meshes[0].Faces, 2)
	assert.Equal(t, []uint32{1, 3, 2}, s.Meshes[0].Faces[1])
	assert.True(t, s.Meshes[0].HasTexCoords())
	assert.False(t, s.Meshes[0].HasNormals())
	assert.Equal(t, 0, s.Meshes[0].MaterialIndex)
	assert.Equal(t, -1, s.Meshes[1].MaterialIndex)

	require.Len(t, s.Materials, 1)
	assert.Equal(t, mgl32.Vec4{0.5, 0.25, 1, 1}, s.Materials[0].Diffuse)
	assert.Equal(t, "brick.png", s.Materials[0].DiffuseTexture)

	require.NotNil(t, s.Root)
	assert.Equal(t, "house", s.Root.Name)
	require.Len(t, s.Root.Children, 1)
	house := s.Root.Children[0]
	require.Len(t, house.Children, 2)
	assert.Equal(t, []int{0, 1}, house.Children[0].MeshIndices)
	assert.Empty(t, house.Children[1].MeshIndices)

	st := s.Stats()
	assert.Equal(t, Stats{Meshes: 2, Materials: 1, Textures: 1, Nodes: 4, Vertices: 8, Faces: 4}, st)
}

func TestGLTFImportMissingFile(t *testing.T) {
	_, err := NewGLTFImporter(zap.NewNop()).Import(filepath.Join(t.TempDir(), "nope.glb"))
	assert.Error(t, err)
}

func TestRegistryPostProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "house.glb")
	writeQuadGLB(t, path)

	r := NewRegistry(Options{GenerateNormals: true, DefaultTexCoords: true}, zap.NewNop())
	require.True(t, r.Supports(path))

	s, err := r.Import(path)
	require.NoError(t, err)
	for _, m := range s.Meshes {
		require.True(t, m.HasNormals(), m.Name)
		require.True(t, m.HasTexCoords(), m.Name)
		for _, n := range m.Normals {
			assert.InDelta(t, 1, n[2], 1e-5)
		}
	}
	assert.Equal(t, mgl32.Vec2{}, s.Meshes[1].TexCoords[0])
}

func TestRegistryWithoutPostProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "house.glb")
	writeQuadGLB(t, path)

	s, err := NewRegistry(Options{}, zap.NewNop()).Import(path)
	require.NoError(t, err)
	assert.False(t, s.Meshes[1].HasNormals())
	assert.False(t, s.Meshes[1].HasTexCoords())
}

func TestRegistryUnsupported(t *testing.T) {
	r := NewRegistry(Options{}, zap.NewNop())
	assert.False(t, r.Supports("scene.fbx"))
	_, err := r.Import("scene.fbx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestGenerateNormals(t *testing.T) {
	positions := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 0, -1}, {5, 5, 5}}
	faces := [][]uint32{{0, 1, 2}, {0, 1}, {0, 1, 9}}

	normals := GenerateNormals(positions, faces)
	require.Len(t, normals, 4)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 1, normals[i][1], 1e-5, "vertex %d", i)
	}
	// Unreferenced vertex falls back to +Y.
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, normals[3])
}

type rsmFace struct {
	verts   [3]uint16
	texture uint16
}

type rsmNode struct {
	name, parent string
	textures     []int32
	position     [3]float32
	vertices     [][3]float32
	faces        []rsmFace
}

// rsmFile encodes a v1.5 RSM with the given textures and nodes.
func rsmFile(textures []string, root string, nodes []rsmNode) []byte {
	var data []byte
	u32 := func(v uint32) { data = binary.LittleEndian.AppendUint32(data, v) }
	f32 := func(v float32) { u32(math.Float32bits(v)) }
	u16 := func(v uint16) { data = binary.LittleEndian.AppendUint16(data, v) }
	name := func(s string) {
		b := make([]byte, 40)
		copy(b, s)
		data = append(data, b...)
	}

	data = append(data, "GRSM"...)
	data = append(data, 1, 5)
	u32(0)
	u32(1) // flat shading
	data = append(data, 255)
	data = append(data, make([]byte, 16)...)
	u32(uint32(len(textures)))
	for _, tex := range textures {
		name(tex)
	}
	name(root)
	u32(uint32(len(nodes)))

	for _, n := range nodes {
		name(n.name)
		name(n.parent)
		u32(uint32(len(n.textures)))
		for _, id := range n.textures {
			u32(uint32(id))
		}
		for _, v := range []float32{1, 0, 0, 0, 1, 0, 0, 0, 1} {
			f32(v)
		}
		for i := 0; i < 3; i++ {
			f32(0) // offset
		}
		for _, v := range n.position {
			f32(v)
		}
		f32(0)
		for i := 0; i < 3; i++ {
			f32(0)
		}
		for i := 0; i < 3; i++ {
			f32(1)
		}

		u32(uint32(len(n.vertices)))
		for _, v := range n.vertices {
			f32(v[0])
			f32(v[1])
			f32(v[2])
		}
		u32(uint32(len(n.vertices)))
		for i := range n.vertices {
			data = append(data, 255, 255, 255, 255)
			f32(float32(i))
			f32(0)
		}
		u32(uint32(len(n.faces)))
		for _, f := range n.faces {
			u16(f.verts[0])
			u16(f.verts[1])
			u16(f.verts[2])
			u16(f.verts[0])
			u16(f.verts[1])
			u16(f.verts[2])
			u16(f.texture)
			u16(0)
			u32(0)
			u32(0)
		}
		u32(0) // rot keys
		u32(0) // scale keys
	}
	u32(0)
	return data
}

func TestRSMImport(t *testing.T) {
	tri := [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	data := rsmFile(
		[]string{`data\texture\wall.bmp`, `data\texture\roof.bmp`},
		"base",
		[]rsmNode{
			{
				name:     "base",
				textures: []int32{0, 1},
				vertices: tri,
				faces:    []rsmFace{{verts: [3]uint16{0, 1, 2}, texture: 0}, {verts: [3]uint16{2, 1, 0}, texture: 1}, {verts: [3]uint16{0, 1, 7}}},
			},
			{
				name:     "chimney",
				parent:   "base",
				textures: []int32{1},
				position: [3]float32{10, 0, 0},
				vertices: tri,
				faces:    []rsmFace{{verts: [3]uint16{0, 1, 2}}},
			},
			{name: "empty", parent: "base"},
		},
	)
	path := filepath.Join(t.TempDir(), "house.rsm")
	require.NoError(t, os.WriteFile(path, data, 0644))

	s, err := NewRegistry(Options{GenerateNormals: true, DefaultTexCoords: true}, zap.NewNop()).Import(path)
	require.NoError(t, err)

	require.Len(t, s.Materials, 2)
	assert.Equal(t, "wall.bmp", s.Materials[0].DiffuseTexture)
	assert.Equal(t, "roof", s.Materials[1].Name)

	require.Equal(t, "base", s.Root.Name)
	assert.Equal(t, []int{0, 1}, s.Root.MeshIndices)
	require.Len(t, s.Root.Children, 2)
	chimney := s.Root.Children[0]
	assert.Equal(t, "chimney", chimney.Name)
	assert.Equal(t, []int{2}, chimney.MeshIndices)
	assert.Empty(t, s.Root.Children[1].MeshIndices)

	require.Len(t, s.Meshes, 3)
	assert.Equal(t, "base_tex0", s.Meshes[0].Name)
	assert.Equal(t, 0, s.Meshes[0].MaterialIndex)
	assert.Equal(t, 1, s.Meshes[1].MaterialIndex)
	assert.Len(t, s.Meshes[0].Faces, 1, "face with a bad vertex id is dropped")

	// The child inherits the parent transform plus its own translation; Y is flipped.
	assert.Equal(t, mgl32.Vec3{11, 0, 0}, s.Meshes[2].Positions[1])
	assert.Equal(t, mgl32.Vec3{0, -1, 0}, s.Meshes[0].Positions[2])
	for _, m := range s.Meshes {
		assert.True(t, m.HasNormals())
		assert.True(t, m.HasTexCoords())
	}
}

func TestRSMImportErrors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.rsm")
	require.NoError(t, os.WriteFile(bad, []byte("GRSM"), 0644))
	_, err := NewRSMImporter(zap.NewNop()).Import(bad)
	assert.Error(t, err)

	noNodes := filepath.Join(dir, "empty.rsm")
	require.NoError(t, os.WriteFile(noNodes, rsmFile(nil, "", nil), 0644))
	_, err = NewRSMImporter(zap.NewNop()).Import(noNodes)
	assert.Error(t, err)
}
