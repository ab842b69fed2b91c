// Model file layout: a mesh-path table followed by the node tree.
package formats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Faultbox/libforge/pkg/binio"
)

// Model format errors.
var (
	ErrTruncatedModel = errors.New("truncated model data")
	ErrEmptyModel     = errors.New("empty model file")
)

// NodeRecord is one node of a serialized hierarchy.
type NodeRecord struct {
	Name        string        // Node name
	MeshIndices []uint32      // Indices into the model's mesh table
	Children    []*NodeRecord // Child nodes in traversal order
}

// NodeHeader holds the fields of a node that precede its children.
type NodeHeader struct {
	Name        string
	MeshIndices []uint32
	ChildCount  uint32
}

// Model is a fully decoded model file.
type Model struct {
	Version   uint32      // LegacyVersion or CurrentVersion
	MeshPaths []string    // Mesh table
	Root      *NodeRecord // Node tree
}

// NodeSize returns the number of bytes WriteNode writes for n and its subtree.
func NodeSize(n *NodeRecord) int {
	if n == nil {
		return 0
	}
	size := binio.StringSize(n.Name)
	size += 4 + 4*len(n.MeshIndices)
	size += 4
	for _, child := range n.Children {
		size += NodeSize(child)
	}
	return size
}

// WriteNode writes n and its subtree depth-first, pre-order.
func WriteNode(w *binio.Writer, n *NodeRecord) error {
	if n == nil {
		return errors.New("nil node")
	}
	if err := w.String(n.Name); err != nil {
		return fmt.Errorf("node %q name: %w", n.Name, err)
	}
	if err := w.Uint32(uint32(len(n.MeshIndices))); err != nil {
		return fmt.Errorf("node %q mesh count: %w", n.Name, err)
	}
	if err := w.Uint32s(n.MeshIndices); err != nil {
		return fmt.Errorf("node %q mesh indices: %w", n.Name, err)
	}
	if err := w.Uint32(uint32(len(n.Children))); err != nil {
		return fmt.Errorf("node %q child count: %w", n.Name, err)
	}
	for _, child := range n.Children {
		if err := WriteNode(w, child); err != nil {
			return err
		}
	}
	return nil
}

// ReadNodeHeader reads the name, mesh indices and child count of one node.
func ReadNodeHeader(r *binio.Reader) (NodeHeader, error) {
	var h NodeHeader
	name, err := r.String()
	if err != nil {
		return h, fmt.Errorf("%w: node name: %v", ErrTruncatedModel, err)
	}
	h.Name = name

	meshCount, err := r.Uint32()
	if err != nil {
		return h, fmt.Errorf("%w: node %q mesh count: %v", ErrTruncatedModel, name, err)
	}
	if !r.Fits(uint64(meshCount), 4) {
		return h, fmt.Errorf("%w: node %q claims %d meshes", ErrTruncatedModel, name, meshCount)
	}
	h.MeshIndices = make([]uint32, meshCount)
	if err := r.Uint32s(h.MeshIndices); err != nil {
		return h, fmt.Errorf("%w: node %q mesh indices: %v", ErrTruncatedModel, name, err)
	}

	h.ChildCount, err = r.Uint32()
	if err != nil {
		return h, fmt.Errorf("%w: node %q child count: %v", ErrTruncatedModel, name, err)
	}
	return h, nil
}

// ReadNodeTree decodes a node and its subtree.
func ReadNodeTree(r *binio.Reader) (*NodeRecord, error) {
	h, err := ReadNodeHeader(r)
	if err != nil {
		return nil, err
	}
	// Every child needs at least an empty name, a mesh count and a child count.
	if !r.Fits(uint64(h.ChildCount), binio.StringSize("")+8) {
		return nil, fmt.Errorf("%w: node %q claims %d children", ErrTruncatedModel, h.Name, h.ChildCount)
	}
	n := &NodeRecord{Name: h.Name, MeshIndices: h.MeshIndices}
	for i := uint32(0); i < h.ChildCount; i++ {
		child, err := ReadNodeTree(r)
		if err != nil {
			return n, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

// MeshTableSize returns the size of the mesh count and path table.
func MeshTableSize(paths []string) int {
	size := 4
	for _, p := range paths {
		size += binio.StringSize(p)
	}
	return size
}

// ModelSize returns the size of a complete model file.
func ModelSize(paths []string, root *NodeRecord, layout Layout) int {
	return TagSize(layout) + MeshTableSize(paths) + NodeSize(root)
}

// EncodeModel serializes a mesh table and node tree into one buffer that is
// allocated once at its final size.
func EncodeModel(paths []string, root *NodeRecord, layout Layout) ([]byte, error) {
	w := binio.NewWriter(ModelSize(paths, root, layout))
	if err := WriteTag(w, ModelMagic, layout); err != nil {
		return nil, err
	}
	if err := w.Uint32(uint32(len(paths))); err != nil {
		return nil, err
	}
	for i, p := range paths {
		if err := w.String(p); err != nil {
			return nil, fmt.Errorf("mesh path %d: %w", i, err)
		}
	}
	if err := WriteNode(w, root); err != nil {
		return nil, err
	}
	if !w.Full() {
		return nil, fmt.Errorf("model buffer has %d unused bytes", w.Remaining())
	}
	return w.Bytes(), nil
}

// ReadMeshTable reads the tag header, mesh count and mesh paths.
func ReadMeshTable(r *binio.Reader) (uint32, []string, error) {
	version, err := ReadTag(r, ModelMagic)
	if err != nil {
		return version, nil, err
	}
	count, err := r.Uint32()
	if err != nil {
		return version, nil, fmt.Errorf("%w: mesh count: %v", ErrTruncatedModel, err)
	}
	if !r.Fits(uint64(count), binio.StringSize("")) {
		return version, nil, fmt.Errorf("%w: model claims %d meshes", ErrTruncatedModel, count)
	}
	paths := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		p, err := r.String()
		if err != nil {
			return version, paths, fmt.Errorf("%w: mesh path %d: %v", ErrTruncatedModel, i, err)
		}
		paths = append(paths, p)
	}
	return version, paths, nil
}

// ParseModel decodes a complete model file.
func ParseModel(data []byte) (*Model, error) {
	if len(data) == 0 {
		return nil, ErrEmptyModel
	}
	r := binio.NewReader(data)
	version, paths, err := ReadMeshTable(r)
	if err != nil {
		return nil, err
	}
	root, err := ReadNodeTree(r)
	if err != nil {
		return nil, fmt.Errorf("parsing node tree: %w", err)
	}
	return &Model{Version: version, MeshPaths: paths, Root: root}, nil
}

// ParseModelFile parses a model file from disk.
func ParseModelFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}
	return ParseModel(data)
}

// WriteModelFile encodes a model and writes it to path, creating parent
// directories as needed.
func WriteModelFile(path string, paths []string, root *NodeRecord, layout Layout) error {
	data, err := EncodeModel(paths, root, layout)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// CountNodes returns the number of nodes in the subtree rooted at n.
func (n *NodeRecord) CountNodes() int {
	if n == nil {
		return 0
	}
	count := 1
	for _, child := range n.Children {
		count += child.CountNodes()
	}
	return count
}
