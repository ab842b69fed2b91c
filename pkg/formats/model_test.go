package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Faultbox/libforge/pkg/binio"
)

func sampleTree() *NodeRecord {
	return &NodeRecord{
		Name: "RootNode",
		Children: []*NodeRecord{
			{Name: "Body", MeshIndices: []uint32{0}},
			{
				Name: "Group",
				Children: []*NodeRecord{
					{Name: "Wheel", MeshIndices: []uint32{1, 2}},
					{Name: ""},
				},
			},
		},
	}
}

func TestNodeSize(t *testing.T) {
	tests := []struct {
		name string
		node *NodeRecord
		want int
	}{
		{"nil", nil, 0},
		{"empty leaf", &NodeRecord{}, 4 + 1 + 4 + 4},
		{"named leaf", &NodeRecord{Name: "abc"}, 4 + 4 + 4 + 4},
		{"with meshes", &NodeRecord{Name: "a", MeshIndices: []uint32{3, 4}}, 4 + 2 + 4 + 8 + 4},
		{
			"with child",
			&NodeRecord{Name: "a", Children: []*NodeRecord{{Name: "b"}}},
			(4 + 2 + 4 + 4) * 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NodeSize(tt.node); got != tt.want {
				t.Errorf("NodeSize = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteNodeFillsExactSize(t *testing.T) {
	root := sampleTree()
	size := NodeSize(root)

	w := binio.NewWriter(size)
	if err := WriteNode(w, root); err != nil {
		t.Fatalf("WriteNode failed: %v", err)
	}
	if !w.Full() {
		t.Errorf("buffer not full: %d bytes left", w.Remaining())
	}

	// One byte short must overflow instead of corrupting memory.
	short := binio.NewWriter(size - 1)
	if err := WriteNode(short, root); !errors.Is(err, binio.ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestWriteNodeLayout(t *testing.T) {
	node := &NodeRecord{Name: "ab", MeshIndices: []uint32{5}, Children: []*NodeRecord{{Name: "c"}}}
	w := binio.NewWriter(NodeSize(node))
	if err := WriteNode(w, node); err != nil {
		t.Fatalf("WriteNode failed: %v", err)
	}

	var want bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&want, le, uint32(2))
	want.WriteString("ab\x00")
	binary.Write(&want, le, uint32(1))
	binary.Write(&want, le, uint32(5))
	binary.Write(&want, le, uint32(1))
	binary.Write(&want, le, uint32(1))
	want.WriteString("c\x00")
	binary.Write(&want, le, uint32(0))
	binary.Write(&want, le, uint32(0))

	if !bytes.Equal(w.Bytes(), want.Bytes()) {
		t.Errorf("layout mismatch:\n got %v\nwant %v", w.Bytes(), want.Bytes())
	}
}

func TestReadNodeTreeRoundTrip(t *testing.T) {
	root := sampleTree()
	w := binio.NewWriter(NodeSize(root))
	if err := WriteNode(w, root); err != nil {
		t.Fatalf("WriteNode failed: %v", err)
	}

	r := binio.NewReader(w.Bytes())
	got, err := ReadNodeTree(r)
	if err != nil {
		t.Fatalf("ReadNodeTree failed: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("%d bytes left after decode", r.Len())
	}

	// Decoded leaves have empty, non-nil index slices.
	var normalize func(n *NodeRecord)
	normalize = func(n *NodeRecord) {
		if len(n.MeshIndices) == 0 {
			n.MeshIndices = nil
		}
		for _, c := range n.Children {
			normalize(c)
		}
	}
	normalize(got)

	if !reflect.DeepEqual(got, root) {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if got.CountNodes() != 5 {
		t.Errorf("expected 5 nodes, got %d", got.CountNodes())
	}
}

func TestReadNodeTreeTruncated(t *testing.T) {
	root := sampleTree()
	w := binio.NewWriter(NodeSize(root))
	if err := WriteNode(w, root); err != nil {
		t.Fatalf("WriteNode failed: %v", err)
	}
	data := w.Bytes()

	for _, cut := range []int{0, 3, 10, len(data) / 2, len(data) - 1} {
		_, err := ReadNodeTree(binio.NewReader(data[:cut]))
		if !errors.Is(err, ErrTruncatedModel) {
			t.Errorf("cut at %d: expected ErrTruncatedModel, got %v", cut, err)
		}
	}
}

func TestReadNodeHeaderHugeCounts(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteByte(0)
	binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFF0))

	_, err := ReadNodeHeader(binio.NewReader(buf.Bytes()))
	if !errors.Is(err, ErrTruncatedModel) {
		t.Errorf("expected ErrTruncatedModel, got %v", err)
	}
}

func TestEncodeParseModel(t *testing.T) {
	paths := []string{"Library/Meshes/car0.mesh", "Library/Meshes/car1.mesh", "Library/Meshes/car2.mesh"}

	for _, layout := range []Layout{LayoutLegacy, LayoutTagged} {
		t.Run(layout.String(), func(t *testing.T) {
			data, err := EncodeModel(paths, sampleTree(), layout)
			if err != nil {
				t.Fatalf("EncodeModel failed: %v", err)
			}
			if len(data) != ModelSize(paths, sampleTree(), layout) {
				t.Errorf("size %d, want %d", len(data), ModelSize(paths, sampleTree(), layout))
			}

			model, err := ParseModel(data)
			if err != nil {
				t.Fatalf("ParseModel failed: %v", err)
			}
			if !reflect.DeepEqual(model.MeshPaths, paths) {
				t.Errorf("paths = %v", model.MeshPaths)
			}
			wantVersion := LegacyVersion
			if layout == LayoutTagged {
				wantVersion = CurrentVersion
			}
			if model.Version != wantVersion {
				t.Errorf("version = %d, want %d", model.Version, wantVersion)
			}
			if model.Root.Name != "RootNode" || len(model.Root.Children) != 2 {
				t.Errorf("unexpected root %+v", model.Root)
			}
		})
	}
}

func TestEncodeModelEmptyTable(t *testing.T) {
	data, err := EncodeModel(nil, &NodeRecord{Name: "Root"}, LayoutLegacy)
	if err != nil {
		t.Fatalf("EncodeModel failed: %v", err)
	}
	if binary.LittleEndian.Uint32(data) != 0 {
		t.Errorf("expected zero mesh count")
	}
	model, err := ParseModel(data)
	if err != nil {
		t.Fatalf("ParseModel failed: %v", err)
	}
	if len(model.MeshPaths) != 0 {
		t.Errorf("expected empty table, got %v", model.MeshPaths)
	}
}

func TestParseModelErrors(t *testing.T) {
	tagged, err := EncodeModel([]string{"a.mesh"}, &NodeRecord{Name: "R"}, LayoutTagged)
	if err != nil {
		t.Fatalf("EncodeModel failed: %v", err)
	}
	future := append([]byte(nil), tagged...)
	binary.LittleEndian.PutUint32(future[4:], CurrentVersion+1)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, ErrEmptyModel},
		{"short count", []byte{1, 0}, ErrTruncatedModel},
		{"table overrun", []byte{5, 0, 0, 0, 1, 0, 0, 0}, ErrTruncatedModel},
		{"missing tree", tagged[:len(tagged)-4], ErrTruncatedModel},
		{"future version", future, ErrUnsupportedVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModel(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWriteModelFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Library", "Models", "car.model")
	if err := WriteModelFile(path, []string{"x.mesh"}, sampleTree(), LayoutTagged); err != nil {
		t.Fatalf("WriteModelFile failed: %v", err)
	}
	model, err := ParseModelFile(path)
	if err != nil {
		t.Fatalf("ParseModelFile failed: %v", err)
	}
	if model.Root.CountNodes() != 5 {
		t.Errorf("expected 5 nodes, got %d", model.Root.CountNodes())
	}
}

func TestLayoutString(t *testing.T) {
	tests := []struct {
		layout Layout
		want   string
	}{
		{LayoutTagged, "tagged"},
		{LayoutLegacy, "legacy"},
		{Layout(9), "Unknown(9)"},
	}
	for _, tt := range tests {
		if got := tt.layout.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}
