package sceneimport

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"
)

// GLTFImporter reads .gltf and .glb files. Every primitive becomes one
// interchange mesh; a node referencing a glTF mesh lists all of its
// primitives.
type GLTFImporter struct {
	log *zap.Logger
}

// NewGLTFImporter creates a glTF importer.
func NewGLTFImporter(log *zap.Logger) *GLTFImporter {
	return &GLTFImporter{log: log}
}

// Import implements Importer.
func (g *GLTFImporter) Import(path string) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read gltf")
	}
	return g.convert(doc, path)
}

func (g *GLTFImporter) convert(doc *gltf.Document, path string) (*Scene, error) {
	s := &Scene{Source: path}

	for i, mat := range doc.Materials {
		s.Materials = append(s.Materials, g.material(doc, i, mat))
	}

	// glTF mesh index -> interchange mesh indices
	primitives := make([][]int, len(doc.Meshes))
	for iMesh, mesh := range doc.Meshes {
		for iPrim, prim := range mesh.Primitives {
			m, err := g.primitive(doc, prim)
			if err != nil {
				g.log.Warn("skipping primitive",
					zap.String("mesh", mesh.Name),
					zap.Int("primitive", iPrim),
					zap.Error(err),
				)
				continue
			}
			m.Name = mesh.Name
			if len(mesh.Primitives) > 1 {
				m.Name = fmt.Sprintf("%s_%d", mesh.Name, iPrim)
			}
			primitives[iMesh] = append(primitives[iMesh], len(s.Meshes))
			s.Meshes = append(s.Meshes, m)
		}
	}

	visited := make(map[uint32]bool)
	var build func(id uint32) (*Node, error)
	build = func(id uint32) (*Node, error) {
		if int(id) >= len(doc.Nodes) {
			return nil, errors.Errorf("node index %d out of range", id)
		}
		if visited[id] {
			return nil, errors.Errorf("node %d appears twice in the hierarchy", id)
		}
		visited[id] = true

		src := doc.Nodes[id]
		n := &Node{Name: src.Name}
		if n.Name == "" {
			n.Name = fmt.Sprintf("node%d", id)
		}
		if src.Mesh != nil && int(*src.Mesh) < len(primitives) {
			n.MeshIndices = append(n.MeshIndices, primitives[*src.Mesh]...)
		}
		for _, c := range src.Children {
			child, err := build(c)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
		return n, nil
	}

	s.Root = &Node{Name: baseName(path)}
	for _, id := range sceneRoots(doc) {
		child, err := build(id)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read gltf hierarchy")
		}
		s.Root.Children = append(s.Root.Children, child)
	}
	return s, nil
}

// sceneRoots returns the root nodes of the default scene, or every node that
// is nobody's child when the file has no scenes.
func sceneRoots(doc *gltf.Document) []uint32 {
	if len(doc.Scenes) > 0 {
		idx := uint32(0)
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			idx = *doc.Scene
		}
		return doc.Scenes[idx].Nodes
	}

	isChild := make(map[uint32]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			isChild[c] = true
		}
	}
	var roots []uint32
	for i := range doc.Nodes {
		if !isChild[uint32(i)] {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

func (g *GLTFImporter) material(doc *gltf.Document, index int, mat *gltf.Material) *Material {
	name := mat.Name
	if name == "" {
		name = fmt.Sprintf("material%d", index)
	}
	m := newMaterial(name)

	pbr := mat.PBRMetallicRoughness
	if pbr == nil {
		return m
	}
	if pbr.BaseColorFactor != nil {
		m.Diffuse = mgl32.Vec4(*pbr.BaseColorFactor)
	}
	if pbr.BaseColorTexture != nil {
		m.DiffuseTexture = imageFileName(doc, pbr.BaseColorTexture.Index)
	}
	return m
}

// imageFileName resolves a texture index to the file name of its image.
// Embedded images have no file and yield "".
func imageFileName(doc *gltf.Document, texture uint32) string {
	if int(texture) >= len(doc.Textures) {
		return ""
	}
	src := doc.Textures[texture].Source
	if src == nil || int(*src) >= len(doc.Images) {
		return ""
	}
	uri := doc.Images[*src].URI
	if uri == "" || strings.HasPrefix(uri, "data:") {
		return ""
	}
	return textureFileName(uri)
}

func accessor(doc *gltf.Document, idx uint32) (*gltf.Accessor, error) {
	if int(idx) >= len(doc.Accessors) {
		return nil, errors.Errorf("accessor %d out of range (%d accessors)", idx, len(doc.Accessors))
	}
	return doc.Accessors[idx], nil
}

func (g *GLTFImporter) primitive(doc *gltf.Document, prim *gltf.Primitive) (*Mesh, error) {
	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, errors.New("primitive has no positions")
	}
	acr, err := accessor(doc, posIdx)
	if err != nil {
		return nil, err
	}
	positions, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read mesh vertices")
	}

	m := &Mesh{MaterialIndex: -1}
	m.Positions = make([]mgl32.Vec3, len(positions))
	for i, p := range positions {
		m.Positions[i] = mgl32.Vec3(p)
	}

	if idx, ok := prim.Attributes["NORMAL"]; ok {
		acr, err := accessor(doc, idx)
		if err != nil {
			return nil, err
		}
		normals, err := modeler.ReadNormal(doc, acr, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read mesh normals")
		}
		m.Normals = make([]mgl32.Vec3, len(normals))
		for i, n := range normals {
			m.Normals[i] = mgl32.Vec3(n)
		}
	}

	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		acr, err := accessor(doc, idx)
		if err != nil {
			return nil, err
		}
		uvs, err := modeler.ReadTextureCoord(doc, acr, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read mesh texture coordinates")
		}
		m.TexCoords = make([]mgl32.Vec2, len(uvs))
		for i, uv := range uvs {
			m.TexCoords[i] = mgl32.Vec2(uv)
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		acr, err := accessor(doc, *prim.Indices)
		if err != nil {
			return nil, err
		}
		indices, err = modeler.ReadIndices(doc, acr, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read mesh indices")
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	var corners int
	switch prim.Mode {
	case gltf.PrimitiveTriangles:
		corners = 3
	case gltf.PrimitiveLines:
		corners = 2
	case gltf.PrimitivePoints:
		corners = 1
	default:
		return nil, errors.Errorf("unsupported primitive mode %d", prim.Mode)
	}
	for i := 0; i+corners <= len(indices); i += corners {
		m.Faces = append(m.Faces, append([]uint32(nil), indices[i:i+corners]...))
	}

	if prim.Material != nil && int(*prim.Material) < len(doc.Materials) {
		m.MaterialIndex = int(*prim.Material)
	}
	return m, nil
}
