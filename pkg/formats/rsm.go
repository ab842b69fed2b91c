package formats

import (
	"errors"
	"fmt"
	"os"

	"github.com/Faultbox/libforge/pkg/binio"
	"github.com/Faultbox/libforge/pkg/encoding"
)

// RSM (Ragnarok Online resource model) errors.
var (
	ErrInvalidRSMMagic       = errors.New("invalid RSM magic: expected 'GRSM'")
	ErrUnsupportedRSMVersion = errors.New("unsupported RSM version")
	ErrTruncatedRSMData      = errors.New("truncated RSM data")
	ErrInvalidNodeCount      = errors.New("invalid RSM node count")
)

const (
	rsmMagic      = "GRSM"
	rsmNameLength = 40
	rsmMaxNodes   = 10000
)

// RSMVersion represents the RSM file version.
type RSMVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v RSMVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if version is >= major.minor.
func (v RSMVersion) AtLeast(major, minor uint8) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// RSMShadingType is the shading mode stored in the header.
type RSMShadingType int32

const (
	RSMShadingNone RSMShadingType = iota
	RSMShadingFlat
	RSMShadingSmooth
)

// String returns a human-readable shading type name.
func (s RSMShadingType) String() string {
	switch s {
	case RSMShadingNone:
		return "None"
	case RSMShadingFlat:
		return "Flat"
	case RSMShadingSmooth:
		return "Smooth"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(s))
	}
}

// RSMTexCoord is a texture coordinate with its vertex color (v1.2+).
type RSMTexCoord struct {
	Color [4]uint8
	U, V  float32
}

// RSMFace is a triangle referencing vertices and texture coordinates of its node.
type RSMFace struct {
	VertexIDs   [3]uint16
	TexCoordIDs [3]uint16
	TextureID   uint16
	TwoSide     int32
	SmoothGroup int32
}

// RSMRotKeyframe is a rotation keyframe (quaternion X, Y, Z, W).
type RSMRotKeyframe struct {
	Frame      int32
	Quaternion [4]float32
}

// RSMNode is one node of the model hierarchy.
type RSMNode struct {
	Name       string
	Parent     string
	TextureIDs []int32 // indices into RSM.Textures

	Matrix   [9]float32 // vertex-only 3x3 transform
	Offset   [3]float32 // vertex-only pivot offset
	Position [3]float32
	RotAngle float32
	RotAxis  [3]float32
	Scale    [3]float32

	Vertices  [][3]float32
	TexCoords []RSMTexCoord
	Faces     []RSMFace

	RotKeys       []RSMRotKeyframe
	PosKeyCount   int
	ScaleKeyCount int
}

// RSM is a parsed resource model.
type RSM struct {
	Version    RSMVersion
	AnimLength int32
	Shading    RSMShadingType
	Alpha      float32
	Textures   []string
	RootNode   string
	Nodes      []RSMNode
}

type rsmReader struct {
	*binio.Reader
	version RSMVersion
	err     error
}

// The helpers below latch the first error so the parser reads straight
// through a record and checks once at the end.

func (r *rsmReader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	b, err := r.Raw(1)
	if err != nil {
		r.err = err
		return 0
	}
	return b[0]
}

func (r *rsmReader) i32() int32 {
	if r.err != nil {
		return 0
	}
	v, err := r.Uint32()
	r.err = err
	return int32(v)
}

func (r *rsmReader) floats(dst []float32) {
	if r.err != nil {
		return
	}
	r.err = r.Float32s(dst)
}

func (r *rsmReader) name() string {
	if r.err != nil {
		return ""
	}
	b, err := r.Raw(rsmNameLength)
	if err != nil {
		r.err = err
		return ""
	}
	return encoding.FixedStringToUTF8(b)
}

func (r *rsmReader) skip(n int) {
	if r.err != nil {
		return
	}
	r.err = r.Skip(n)
}

// count reads an element count and rejects values the remaining data cannot hold.
func (r *rsmReader) count(elemSize int) int {
	n := r.i32()
	if r.err != nil {
		return 0
	}
	if n < 0 || !r.Fits(uint64(n), elemSize) {
		r.err = fmt.Errorf("%w: count %d of %d-byte elements, %d bytes left", binio.ErrShortRead, n, elemSize, r.Len())
		return 0
	}
	return int(n)
}

// ParseRSM parses RSM data from a byte slice.
func ParseRSM(data []byte) (*RSM, error) {
	if len(data) < 6 {
		return nil, ErrTruncatedRSMData
	}
	if string(data[:4]) != rsmMagic {
		return nil, ErrInvalidRSMMagic
	}

	r := &rsmReader{Reader: binio.NewReader(data)}
	r.skip(4)
	rsm := &RSM{Version: RSMVersion{Major: r.u8(), Minor: r.u8()}}
	r.version = rsm.Version

	if rsm.Version.Major < 1 || rsm.Version.Major > 2 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}

	rsm.AnimLength = r.i32()
	rsm.Shading = RSMShadingType(r.i32())
	rsm.Alpha = 1.0
	if rsm.Version.AtLeast(1, 4) {
		rsm.Alpha = float32(r.u8()) / 255.0
	}
	r.skip(16) // reserved

	texCount := r.count(rsmNameLength)
	rsm.Textures = make([]string, texCount)
	for i := range rsm.Textures {
		rsm.Textures[i] = r.name()
	}
	rsm.RootNode = r.name()

	nodeCount := r.i32()
	if r.err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrTruncatedRSMData, r.err)
	}
	if nodeCount < 0 || nodeCount > rsmMaxNodes {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNodeCount, nodeCount)
	}

	rsm.Nodes = make([]RSMNode, nodeCount)
	for i := range rsm.Nodes {
		r.node(&rsm.Nodes[i])
		if r.err != nil {
			return nil, fmt.Errorf("%w: node %d: %v", ErrTruncatedRSMData, i, r.err)
		}
	}

	// Volume boxes follow; nothing downstream uses them.
	return rsm, nil
}

func (r *rsmReader) node(n *RSMNode) {
	n.Name = r.name()
	n.Parent = r.name()

	n.TextureIDs = make([]int32, r.count(4))
	for i := range n.TextureIDs {
		n.TextureIDs[i] = r.i32()
	}

	r.floats(n.Matrix[:])
	r.floats(n.Offset[:])
	r.floats(n.Position[:])
	n.RotAngle = r.f32()
	r.floats(n.RotAxis[:])
	r.floats(n.Scale[:])

	n.Vertices = make([][3]float32, r.count(12))
	for i := range n.Vertices {
		r.floats(n.Vertices[i][:])
	}

	tcSize := 8
	if r.version.AtLeast(1, 2) {
		tcSize = 12
	}
	n.TexCoords = make([]RSMTexCoord, r.count(tcSize))
	for i := range n.TexCoords {
		tc := &n.TexCoords[i]
		tc.Color = [4]uint8{255, 255, 255, 255}
		if r.version.AtLeast(1, 2) {
			for c := range tc.Color {
				tc.Color[c] = r.u8()
			}
		}
		uv := make([]float32, 2)
		r.floats(uv)
		tc.U, tc.V = uv[0], uv[1]
	}

	faceSize := 20
	if r.version.AtLeast(1, 2) {
		faceSize = 24
	}
	n.Faces = make([]RSMFace, r.count(faceSize))
	for i := range n.Faces {
		f := &n.Faces[i]
		raw := make([]uint32, 4)
		if r.err == nil {
			r.err = r.Uint32s(raw)
		}
		// Three u16 vertex ids then three u16 texcoord ids, a u16 texture and padding.
		f.VertexIDs = [3]uint16{uint16(raw[0]), uint16(raw[0] >> 16), uint16(raw[1])}
		f.TexCoordIDs = [3]uint16{uint16(raw[1] >> 16), uint16(raw[2]), uint16(raw[2] >> 16)}
		f.TextureID = uint16(raw[3])
		f.TwoSide = r.i32()
		if r.version.AtLeast(1, 2) {
			f.SmoothGroup = r.i32()
		}
	}

	if !r.version.AtLeast(1, 5) {
		n.PosKeyCount = r.count(16)
		r.skip(16 * n.PosKeyCount)
	}

	n.RotKeys = make([]RSMRotKeyframe, r.count(20))
	for i := range n.RotKeys {
		n.RotKeys[i].Frame = r.i32()
		r.floats(n.RotKeys[i].Quaternion[:])
	}

	if r.version.AtLeast(1, 5) {
		n.ScaleKeyCount = r.count(16)
		r.skip(16 * n.ScaleKeyCount)
	}
}

func (r *rsmReader) f32() float32 {
	var v [1]float32
	r.floats(v[:])
	return v[0]
}

// ParseRSMFile parses an RSM file from disk.
func ParseRSMFile(path string) (*RSM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading RSM file: %w", err)
	}
	return ParseRSM(data)
}

// GetTotalVertexCount returns the total number of vertices across all nodes.
func (rsm *RSM) GetTotalVertexCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Vertices)
	}
	return total
}

// GetTotalFaceCount returns the total number of faces across all nodes.
func (rsm *RSM) GetTotalFaceCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Faces)
	}
	return total
}

// GetNodeByName returns a node by its name, or nil if not found.
func (rsm *RSM) GetNodeByName(name string) *RSMNode {
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Name == name {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// GetRootNode returns the node named by RootNode, falling back to the first
// node without a parent.
func (rsm *RSM) GetRootNode() *RSMNode {
	if n := rsm.GetNodeByName(rsm.RootNode); n != nil {
		return n
	}
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Parent == "" {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// GetChildNodes returns all nodes that have the given parent name.
func (rsm *RSM) GetChildNodes(parentName string) []*RSMNode {
	var children []*RSMNode
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Parent == parentName && rsm.Nodes[i].Name != parentName {
			children = append(children, &rsm.Nodes[i])
		}
	}
	return children
}

// HasAnimation returns true if any node carries keyframes.
func (rsm *RSM) HasAnimation() bool {
	for _, node := range rsm.Nodes {
		if node.PosKeyCount > 0 || len(node.RotKeys) > 0 || node.ScaleKeyCount > 0 {
			return true
		}
	}
	return false
}
