package sceneimport

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/libforge/pkg/formats"
)

// RSMImporter reads Ragnarok Online .rsm models. Node transforms are baked
// into the vertices and each node is split into one mesh per texture.
type RSMImporter struct {
	log *zap.Logger
}

// NewRSMImporter creates an RSM importer.
func NewRSMImporter(log *zap.Logger) *RSMImporter {
	return &RSMImporter{log: log}
}

// Import implements Importer.
func (i *RSMImporter) Import(path string) (*Scene, error) {
	rsm, err := formats.ParseRSMFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read rsm")
	}
	return i.convert(rsm, path)
}

func (i *RSMImporter) convert(rsm *formats.RSM, path string) (*Scene, error) {
	root := rsm.GetRootNode()
	if root == nil {
		return nil, errors.New("rsm has no root node")
	}

	s := &Scene{Source: path}
	for _, tex := range rsm.Textures {
		m := newMaterial(baseName(textureFileName(tex)))
		m.DiffuseTexture = textureFileName(tex)
		m.Diffuse[3] = rsm.Alpha
		s.Materials = append(s.Materials, m)
	}

	visited := make(map[string]bool)
	var build func(n *formats.RSMNode) *Node
	build = func(n *formats.RSMNode) *Node {
		visited[n.Name] = true
		node := &Node{Name: n.Name}
		for _, m := range i.nodeMeshes(rsm, n) {
			node.MeshIndices = append(node.MeshIndices, len(s.Meshes))
			s.Meshes = append(s.Meshes, m)
		}
		for _, c := range rsm.GetChildNodes(n.Name) {
			if visited[c.Name] {
				i.log.Warn("rsm node cycle", zap.String("node", c.Name))
				continue
			}
			node.Children = append(node.Children, build(c))
		}
		return node
	}

	s.Root = build(root)
	return s, nil
}

// hierarchyMatrix is parent * translate * rotate * scale. Children inherit it.
func hierarchyMatrix(rsm *formats.RSM, n *formats.RSMNode, visited map[string]bool) mgl32.Mat4 {
	if visited[n.Name] {
		return mgl32.Ident4()
	}
	visited[n.Name] = true

	local := mgl32.Translate3D(n.Position[0], n.Position[1], n.Position[2])
	switch {
	case len(n.RotKeys) > 0:
		q := n.RotKeys[0].Quaternion
		local = local.Mul4(mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}}.Normalize().Mat4())
	case n.RotAngle != 0:
		axis := mgl32.Vec3(n.RotAxis)
		if axis.Len() > 1e-6 {
			local = local.Mul4(mgl32.HomogRotate3D(n.RotAngle, axis.Normalize()))
		}
	}
	local = local.Mul4(mgl32.Scale3D(n.Scale[0], n.Scale[1], n.Scale[2]))

	if n.Parent != "" && n.Parent != n.Name {
		if p := rsm.GetNodeByName(n.Parent); p != nil {
			return hierarchyMatrix(rsm, p, visited).Mul4(local)
		}
	}
	return local
}

// vertexMatrix adds the node's pivot offset and 3x3 matrix, which apply to
// its own vertices only.
func vertexMatrix(rsm *formats.RSM, n *formats.RSMNode) mgl32.Mat4 {
	m3 := n.Matrix
	basis := mgl32.Mat4{
		m3[0], m3[1], m3[2], 0,
		m3[3], m3[4], m3[5], 0,
		m3[6], m3[7], m3[8], 0,
		0, 0, 0, 1,
	}
	return hierarchyMatrix(rsm, n, make(map[string]bool)).
		Mul4(mgl32.Translate3D(n.Offset[0], n.Offset[1], n.Offset[2])).
		Mul4(basis)
}

// nodeMeshes builds one mesh per texture used by the node's faces. Each face
// gets its own three vertices because RSM indexes positions and texture
// coordinates separately.
func (i *RSMImporter) nodeMeshes(rsm *formats.RSM, n *formats.RSMNode) []*Mesh {
	if len(n.Faces) == 0 {
		return nil
	}
	xf := vertexMatrix(rsm, n)

	byTexture := make(map[int]*Mesh)
	skipped := 0
	for _, f := range n.Faces {
		if !validFace(n, f) {
			skipped++
			continue
		}

		material := -1
		if int(f.TextureID) < len(n.TextureIDs) {
			if t := int(n.TextureIDs[f.TextureID]); t >= 0 && t < len(rsm.Textures) {
				material = t
			}
		}
		m, ok := byTexture[material]
		if !ok {
			m = &Mesh{MaterialIndex: material}
			byTexture[material] = m
		}

		base := uint32(len(m.Positions))
		for k := 0; k < 3; k++ {
			v := n.Vertices[f.VertexIDs[k]]
			p := xf.Mul4x1(mgl32.Vec4{v[0], v[1], v[2], 1}).Vec3()
			p[1] = -p[1] // RSM is Y-down
			m.Positions = append(m.Positions, p)

			var uv mgl32.Vec2
			if int(f.TexCoordIDs[k]) < len(n.TexCoords) {
				tc := n.TexCoords[f.TexCoordIDs[k]]
				uv = mgl32.Vec2{tc.U, tc.V}
			}
			m.TexCoords = append(m.TexCoords, uv)
		}
		m.Faces = append(m.Faces, []uint32{base, base + 1, base + 2})
	}

	if skipped > 0 {
		i.log.Warn("skipped invalid rsm faces", zap.String("node", n.Name), zap.Int("count", skipped))
	}

	keys := make([]int, 0, len(byTexture))
	for k := range byTexture {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	meshes := make([]*Mesh, 0, len(keys))
	for _, k := range keys {
		m := byTexture[k]
		m.Name = n.Name
		if len(keys) > 1 {
			m.Name = fmt.Sprintf("%s_tex%d", n.Name, k)
		}
		if rsm.Shading != formats.RSMShadingNone {
			m.Normals = GenerateNormals(m.Positions, m.Faces)
			if rsm.Shading == formats.RSMShadingSmooth {
				smoothNormals(m.Positions, m.Normals)
			}
		}
		meshes = append(meshes, m)
	}
	return meshes
}

func validFace(n *formats.RSMNode, f formats.RSMFace) bool {
	for _, id := range f.VertexIDs {
		if int(id) >= len(n.Vertices) {
			return false
		}
	}
	return true
}

// smoothNormals averages normals of vertices sharing a position.
func smoothNormals(positions, normals []mgl32.Vec3) {
	const epsilon float32 = 0.001

	groups := make(map[[3]int32][]int)
	for i, p := range positions {
		key := [3]int32{int32(p[0] / epsilon), int32(p[1] / epsilon), int32(p[2] / epsilon)}
		groups[key] = append(groups[key], i)
	}

	for _, idxs := range groups {
		if len(idxs) < 2 {
			continue
		}
		var sum mgl32.Vec3
		for _, i := range idxs {
			sum = sum.Add(normals[i])
		}
		if sum.Len() < 1e-6 {
			continue
		}
		avg := sum.Normalize()
		for _, i := range idxs {
			normals[i] = avg
		}
	}
}
