package library

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/libforge/internal/engine/mesh"
	"github.com/Faultbox/libforge/internal/resources"
	"github.com/Faultbox/libforge/internal/scene"
	"github.com/Faultbox/libforge/pkg/binio"
	"github.com/Faultbox/libforge/pkg/formats"
)

// decoder rebuilds a serialized node tree into scene nodes.
type decoder struct {
	p     *Pipeline
	table []*mesh.Mesh
	res   *ImportResult
}

// node decodes one node and its subtree under parent.
//
// A node with mesh references is always created; its first usable mesh goes
// on the node itself and every further one on a child named "<name>#<k>".
// A node without mesh references becomes a placeholder named fallbackName
// when it has children and is dropped when it is a leaf. Children get the
// decoded name of this node as their fallback.
func (d *decoder) node(r *binio.Reader, parent *scene.Node, fallbackName string, depth int) error {
	if depth >= MaxDepth {
		return fmt.Errorf("%w: more than %d levels", ErrTooDeep, MaxDepth)
	}

	h, err := formats.ReadNodeHeader(r)
	if err != nil {
		return err
	}

	var n *scene.Node
	switch {
	case len(h.MeshIndices) > 0:
		n = scene.NewNode(h.Name, parent)
		d.res.Nodes++
		d.attachMeshes(n, h)
	case h.ChildCount > 0:
		n = scene.NewNode(fallbackName, parent)
		d.res.Nodes++
	default:
		return nil
	}

	for i := uint32(0); i < h.ChildCount; i++ {
		if err := d.node(r, n, h.Name, depth+1); err != nil {
			return fmt.Errorf("child %d of %q: %w", i, h.Name, err)
		}
	}
	return nil
}

func (d *decoder) attachMeshes(n *scene.Node, h formats.NodeHeader) {
	k := 0
	for _, idx := range h.MeshIndices {
		if int(idx) >= len(d.table) {
			d.res.Warnings++
			d.p.log.Warn("mesh index out of range",
				zap.String("node", h.Name),
				zap.Uint32("index", idx),
				zap.Int("meshes", len(d.table)),
			)
			continue
		}
		m := d.table[idx]
		if m == nil {
			d.res.Warnings++
			d.p.log.Warn("node references a mesh that failed to load",
				zap.String("node", h.Name),
				zap.Uint32("index", idx),
			)
			continue
		}

		carrier := n
		if k > 0 {
			carrier = scene.NewNode(fmt.Sprintf("%s#%d", h.Name, k), n)
			d.res.Nodes++
		}
		carrier.SetMesh(m)
		d.attachTexture(carrier, m)
		k++
	}
}

// releaseUnused frees loaded meshes that no node ended up carrying.
func (d *decoder) releaseUnused() {
	for i, m := range d.table {
		if m != nil && m.Holders() == 0 {
			d.p.log.Debug("mesh not referenced by any node", zap.Int("index", i))
			m.Release()
		}
	}
}

// attachTexture resolves the mesh's diffuse texture through the resource
// library and adds the loaded texture to the node material.
func (d *decoder) attachTexture(n *scene.Node, m *mesh.Mesh) {
	path := m.DiffuseTexturePath
	if path == "" || d.p.deps.Resolver == nil || d.p.deps.Textures == nil {
		return
	}

	res, ok := d.p.deps.Resolver.Find(path, resources.KindOf(path))
	if !ok {
		d.res.Warnings++
		d.p.log.Warn("texture not in library", zap.String("node", n.Name), zap.String("texture", path))
		return
	}
	tex, err := d.p.deps.Textures.Load(res.LibraryPath)
	if err != nil {
		d.res.Warnings++
		d.p.log.Warn("texture not loaded",
			zap.String("node", n.Name),
			zap.String("texture", res.LibraryPath),
			zap.Error(err),
		)
		return
	}
	n.Material.AddTexture(tex)
	d.res.Textures++
}
