// Package scene holds the editor's scene graph: named nodes with a transform,
// an optional mesh and a material.
package scene

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/libforge/internal/engine/mesh"
	"github.com/Faultbox/libforge/internal/engine/texture"
)

// Transform is a node's local translation, rotation and scale.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

// IdentityTransform returns a transform that leaves points unchanged.
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Matrix returns translation * rotation * scale.
func (t Transform) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(t.Position[0], t.Position[1], t.Position[2]).
		Mul4(t.Rotation.Mat4()).
		Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// Material is the surface description attached to a node.
type Material struct {
	Diffuse  mgl32.Vec4
	Specular mgl32.Vec4
	Ambient  mgl32.Vec4
	Textures []*texture.Texture
}

// AddTexture attaches t to the material.
func (m *Material) AddTexture(t *texture.Texture) {
	m.Textures = append(m.Textures, t)
}

// Node is one element of the scene hierarchy.
type Node struct {
	Name      string
	Transform Transform
	Mesh      *mesh.Mesh
	Material  Material

	parent   *Node
	children []*Node
}

// NewNode creates a node and, when parent is non-nil, appends it to the
// parent's children right away.
func NewNode(name string, parent *Node) *Node {
	n := &Node{
		Name:      name,
		Transform: IdentityTransform(),
		Material: Material{
			Diffuse:  mesh.DefaultColor,
			Specular: mesh.DefaultColor,
			Ambient:  mesh.DefaultColor,
		},
	}
	if parent != nil {
		parent.AddChild(n)
	}
	return n
}

// Parent returns the parent node, nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child nodes in insertion order.
func (n *Node) Children() []*Node { return n.children }

// AddChild appends c, detaching it from any previous parent.
func (n *Node) AddChild(c *Node) {
	if c.parent != nil {
		c.parent.RemoveChild(c)
	}
	c.parent = n
	n.children = append(n.children, c)
}

// RemoveChild detaches c. It reports whether c was a child of n.
func (n *Node) RemoveChild(c *Node) bool {
	for i, child := range n.children {
		if child == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			c.parent = nil
			return true
		}
	}
	return false
}

// SetMesh attaches m and copies its material colors. The node holds m until
// it is released or given another mesh; a mesh carried by several nodes is
// freed with the last of them.
func (n *Node) SetMesh(m *mesh.Mesh) {
	m.Retain()
	if n.Mesh != nil {
		n.Mesh.Drop()
	}
	n.Mesh = m
	n.Material.Diffuse = m.Diffuse
	n.Material.Specular = m.Specular
	n.Material.Ambient = m.Ambient
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of that node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Find returns the first node named name in pre-order, or nil.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Walk(func(x *Node) bool {
		if found != nil {
			return false
		}
		if x.Name == name {
			found = x
			return false
		}
		return true
	})
	return found
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}

// Path returns the slash separated names from the root to n.
func (n *Node) Path() string {
	var parts []string
	for x := n; x != nil; x = x.parent {
		parts = append(parts, x.Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// WorldMatrix returns the product of all transforms from the root to n.
func (n *Node) WorldMatrix() mgl32.Mat4 {
	m := n.Transform.Matrix()
	for p := n.parent; p != nil; p = p.parent {
		m = p.Transform.Matrix().Mul4(m)
	}
	return m
}

// Release frees the GPU resources of the subtree and detaches n from its
// parent. Meshes still carried by nodes outside the subtree are kept.
func (n *Node) Release() {
	for _, c := range n.children {
		c.parent = nil
		c.Release()
	}
	n.children = nil
	if n.Mesh != nil {
		n.Mesh.Drop()
		n.Mesh = nil
	}
	for _, t := range n.Material.Textures {
		t.Release()
	}
	n.Material.Textures = nil
	if n.parent != nil {
		n.parent.RemoveChild(n)
	}
}
