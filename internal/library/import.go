package library

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/libforge/internal/engine/mesh"
	"github.com/Faultbox/libforge/internal/scene"
	"github.com/Faultbox/libforge/pkg/binio"
	"github.com/Faultbox/libforge/pkg/formats"
)

// ImportResult describes a finished import.
type ImportResult struct {
	Version      uint32      // model file version, formats.LegacyVersion for legacy files
	Root         *scene.Node // first node created under the parent, nil if none
	MeshesLoaded int
	MeshesFailed int
	Nodes        int // nodes created, including placeholders and extra mesh carriers
	Textures     int // textures attached to node materials
	Warnings     int // skipped mesh references and texture failures
}

// Import loads the model at path under parent and reports success. Failures
// are logged.
func (p *Pipeline) Import(path string, parent *scene.Node) bool {
	res, err := p.ImportModel(path, parent)
	if err != nil {
		p.log.Error("import failed", zap.String("model", path), zap.Error(err))
		return false
	}
	p.log.Info("model imported",
		zap.String("model", path),
		zap.Int("meshes", res.MeshesLoaded),
		zap.Int("failed", res.MeshesFailed),
		zap.Int("nodes", res.Nodes),
		zap.Int("textures", res.Textures),
	)
	return true
}

// ImportModel is Import with the result and error returned. On a hierarchy
// error the nodes linked so far stay attached to parent and the partial
// result is returned along with the error.
func (p *Pipeline) ImportModel(path string, parent *scene.Node) (*ImportResult, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if parent == nil {
		return nil, ErrNilParent
	}
	if p.deps.GPU == nil {
		return nil, ErrNoUploader
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	r := binio.NewReader(data)
	version, paths, err := formats.ReadMeshTable(r)
	if err != nil {
		return nil, fmt.Errorf("reading mesh table: %w", err)
	}

	res := &ImportResult{Version: version}
	table := p.loadMeshes(paths, res)
	if res.MeshesLoaded == 0 {
		return nil, ErrNoMeshes
	}

	d := &decoder{p: p, table: table, res: res}
	before := len(parent.Children())
	err = d.node(r, parent, BaseName(path), 0)
	d.releaseUnused()
	if kids := parent.Children(); len(kids) > before {
		res.Root = kids[before]
	}
	if err != nil {
		return res, fmt.Errorf("reading node tree: %w", err)
	}
	if r.Len() > 0 {
		p.log.Warn("trailing bytes after node tree", zap.String("model", path), zap.Int("bytes", r.Len()))
	}
	return res, nil
}

// loadMeshes reads and uploads every table entry. Failed entries stay nil
// so node indices keep pointing at the right slots.
func (p *Pipeline) loadMeshes(paths []string, res *ImportResult) []*mesh.Mesh {
	table := make([]*mesh.Mesh, len(paths))
	for i, path := range paths {
		m, err := mesh.Load(path, p.deps.GPU)
		if err != nil {
			res.MeshesFailed++
			p.log.Warn("mesh not loaded", zap.Int("index", i), zap.String("mesh", path), zap.Error(err))
			continue
		}
		res.MeshesLoaded++
		table[i] = m
		p.log.Debug("mesh loaded",
			zap.Int("index", i),
			zap.String("mesh", path),
			zap.Int("vertices", m.VertexCount()),
			zap.Int("indices", m.IndexCount()),
			zap.Int("normals", len(m.Normals())),
			zap.Int("texcoords", len(m.TexCoords())),
		)
	}
	return table
}
