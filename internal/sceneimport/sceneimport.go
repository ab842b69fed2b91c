// Package sceneimport reads interchange 3D formats into a common in-memory
// scene that the library exporter consumes.
package sceneimport

import (
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrUnsupportedFormat is returned for files no importer is registered for.
var ErrUnsupportedFormat = errors.New("unsupported scene format")

// Scene is an imported interchange scene.
type Scene struct {
	Source    string
	Meshes    []*Mesh
	Materials []*Material
	Root      *Node
}

// Mesh is interchange geometry. Faces index into the vertex arrays; faces
// that are not triangles are kept so the exporter can report them.
type Mesh struct {
	Name          string
	Positions     []mgl32.Vec3
	Normals       []mgl32.Vec3
	TexCoords     []mgl32.Vec2
	Faces         [][]uint32
	MaterialIndex int // -1 when the mesh has no material
}

// HasNormals reports whether every vertex has a normal.
func (m *Mesh) HasNormals() bool {
	return len(m.Normals) > 0 && len(m.Normals) == len(m.Positions)
}

// HasTexCoords reports whether every vertex has a texture coordinate.
func (m *Mesh) HasTexCoords() bool {
	return len(m.TexCoords) > 0 && len(m.TexCoords) == len(m.Positions)
}

// Material is an interchange material.
type Material struct {
	Name     string
	Diffuse  mgl32.Vec4
	Specular mgl32.Vec4
	Ambient  mgl32.Vec4
	// DiffuseTexture is the texture file name as referenced by the source.
	DiffuseTexture string
}

func newMaterial(name string) *Material {
	white := mgl32.Vec4{1, 1, 1, 1}
	return &Material{Name: name, Diffuse: white, Specular: white, Ambient: white}
}

// Node is an interchange hierarchy node.
type Node struct {
	Name        string
	MeshIndices []int
	Children    []*Node
}

// Walk visits n and its descendants in pre-order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Stats counts scene contents for logging.
type Stats struct {
	Meshes, Materials, Textures, Nodes int
	Vertices, Faces                    int
}

// Stats returns the content counts of s.
func (s *Scene) Stats() Stats {
	st := Stats{Meshes: len(s.Meshes), Materials: len(s.Materials)}
	for _, m := range s.Materials {
		if m.DiffuseTexture != "" {
			st.Textures++
		}
	}
	for _, m := range s.Meshes {
		st.Vertices += len(m.Positions)
		st.Faces += len(m.Faces)
	}
	if s.Root != nil {
		s.Root.Walk(func(*Node) { st.Nodes++ })
	}
	return st
}

// Importer parses one interchange format.
type Importer interface {
	Import(path string) (*Scene, error)
}

// Options controls post-processing applied after every import.
type Options struct {
	GenerateNormals  bool
	DefaultTexCoords bool
}

// Registry dispatches to importers by file extension.
type Registry struct {
	importers map[string]Importer
	opts      Options
	log       *zap.Logger
}

// NewRegistry creates a registry with the glTF and RSM importers.
func NewRegistry(opts Options, log *zap.Logger) *Registry {
	r := &Registry{
		importers: make(map[string]Importer),
		opts:      opts,
		log:       log,
	}
	gltfImporter := &GLTFImporter{log: log}
	r.Register(".gltf", gltfImporter)
	r.Register(".glb", gltfImporter)
	r.Register(".rsm", &RSMImporter{log: log})
	return r
}

// Register sets the importer for ext.
func (r *Registry) Register(ext string, imp Importer) {
	r.importers[strings.ToLower(ext)] = imp
}

// Supports reports whether path has a registered importer.
func (r *Registry) Supports(path string) bool {
	_, ok := r.importers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Import parses path with the importer registered for its extension and
// post-processes the result.
func (r *Registry) Import(path string) (*Scene, error) {
	ext := strings.ToLower(filepath.Ext(path))
	imp, ok := r.importers[ext]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", ext)
	}

	s, err := imp.Import(path)
	if err != nil {
		return nil, errors.Wrapf(err, "importing %s", path)
	}
	if s.Source == "" {
		s.Source = path
	}

	for _, m := range s.Meshes {
		if r.opts.GenerateNormals && !m.HasNormals() && len(m.Positions) > 0 {
			m.Normals = GenerateNormals(m.Positions, m.Faces)
			r.log.Debug("generated normals", zap.String("mesh", m.Name))
		}
		if r.opts.DefaultTexCoords && !m.HasTexCoords() && len(m.Positions) > 0 {
			m.TexCoords = make([]mgl32.Vec2, len(m.Positions))
		}
	}
	return s, nil
}

// GenerateNormals computes smooth per-vertex normals by summing the face
// normals of the triangles around each vertex. Vertices outside any valid
// triangle get +Y.
func GenerateNormals(positions []mgl32.Vec3, faces [][]uint32) []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(positions))
	n := uint32(len(positions))
	for _, f := range faces {
		if len(f) != 3 || f[0] >= n || f[1] >= n || f[2] >= n {
			continue
		}
		p0, p1, p2 := positions[f[0]], positions[f[1]], positions[f[2]]
		// Area weighted: the cross product is left unnormalized.
		fn := p1.Sub(p0).Cross(p2.Sub(p0))
		for _, idx := range f {
			normals[idx] = normals[idx].Add(fn)
		}
	}
	for i, v := range normals {
		if v.Len() < 1e-6 {
			normals[i] = mgl32.Vec3{0, 1, 0}
			continue
		}
		normals[i] = v.Normalize()
	}
	return normals
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// textureFileName strips directories from a texture reference, accepting
// both slash styles.
func textureFileName(ref string) string {
	ref = strings.ReplaceAll(ref, "\\", "/")
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	return ref
}
