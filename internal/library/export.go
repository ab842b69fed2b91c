package library

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/libforge/internal/engine/mesh"
	"github.com/Faultbox/libforge/internal/resources"
	"github.com/Faultbox/libforge/internal/sceneimport"
	"github.com/Faultbox/libforge/pkg/formats"
)

// ExportResult describes a finished export.
type ExportResult struct {
	ModelPath string
	MeshPaths []string
	// MeshErrors combines the errors of meshes that were not written.
	MeshErrors error
}

// Skipped returns the number of meshes that were not written.
func (r *ExportResult) Skipped() int {
	return len(multierr.Errors(r.MeshErrors))
}

// Export converts the interchange file at source into library files and
// reports success. Failures are logged.
func (p *Pipeline) Export(source string) bool {
	res, err := p.ExportModel(source)
	if err != nil {
		p.log.Error("export failed", zap.String("source", source), zap.Error(err))
		return false
	}
	p.log.Info("model exported",
		zap.String("source", source),
		zap.String("model", res.ModelPath),
		zap.Int("meshes", len(res.MeshPaths)),
		zap.Int("skipped", res.Skipped()),
	)
	return true
}

// ExportModel is Export with the result and error returned. Per-mesh
// failures do not fail the export; they are collected in MeshErrors.
func (p *Pipeline) ExportModel(source string) (*ExportResult, error) {
	if source == "" {
		return nil, ErrEmptyPath
	}
	if p.deps.Importer == nil {
		return nil, ErrNoImporter
	}

	s, err := p.deps.Importer.Import(source)
	if err != nil {
		return nil, fmt.Errorf("importing %s: %w", source, err)
	}
	if s == nil || s.Root == nil {
		return nil, ErrNoScene
	}
	p.logScene(s)

	base := BaseName(source)
	res := &ExportResult{}

	// Position of each interchange mesh in the mesh table, -1 if dropped.
	tableIndex := make([]int, len(s.Meshes))
	for i, src := range s.Meshes {
		tableIndex[i] = -1

		m, err := p.buildMesh(s, src)
		if err == nil {
			path := p.MeshPath(base, i)
			if err = mesh.WriteFile(m, path, p.cfg.Layout); err == nil {
				tableIndex[i] = len(res.MeshPaths)
				res.MeshPaths = append(res.MeshPaths, path)
				continue
			}
		}

		err = fmt.Errorf("mesh %d (%s): %w", i, src.Name, err)
		p.log.Warn("mesh not exported", zap.Int("index", i), zap.Error(err))
		res.MeshErrors = multierr.Append(res.MeshErrors, err)
	}

	root := nodeRecord(s.Root, tableIndex)
	res.ModelPath = p.ModelPath(base)
	if err := formats.WriteModelFile(res.ModelPath, res.MeshPaths, root, p.cfg.Layout); err != nil {
		return nil, fmt.Errorf("writing model: %w", err)
	}

	if p.deps.Assets != nil {
		if _, err := p.deps.Assets.Register(resources.KindModel, source, res.ModelPath); err != nil {
			p.log.Warn("model not registered", zap.String("model", res.ModelPath), zap.Error(err))
		}
	}
	return res, nil
}

func (p *Pipeline) logScene(s *sceneimport.Scene) {
	st := s.Stats()
	p.log.Info("scene loaded",
		zap.String("source", s.Source),
		zap.Int("meshes", st.Meshes),
		zap.Int("materials", st.Materials),
		zap.Int("textures", st.Textures),
		zap.Int("nodes", st.Nodes),
	)
	for i, m := range s.Meshes {
		p.log.Debug("scene mesh",
			zap.Int("index", i),
			zap.String("name", m.Name),
			zap.Int("vertices", len(m.Positions)),
			zap.Int("faces", len(m.Faces)),
			zap.Bool("normals", m.HasNormals()),
			zap.Bool("texcoords", m.HasTexCoords()),
		)
	}
}

// buildMesh converts one interchange mesh. Faces that are not triangles or
// reference missing vertices are skipped with a warning.
func (p *Pipeline) buildMesh(s *sceneimport.Scene, src *sceneimport.Mesh) (*mesh.Mesh, error) {
	if len(src.Positions) == 0 {
		return nil, ErrNoPositions
	}

	vertexCount := uint32(len(src.Positions))
	indices := make([]uint32, 0, 3*len(src.Faces))
	nonTriangles, outOfRange := 0, 0
	for _, f := range src.Faces {
		if len(f) != 3 {
			nonTriangles++
			continue
		}
		if f[0] >= vertexCount || f[1] >= vertexCount || f[2] >= vertexCount {
			outOfRange++
			continue
		}
		indices = append(indices, f...)
	}
	if nonTriangles > 0 {
		p.log.Warn("skipped non-triangle faces", zap.String("mesh", src.Name), zap.Int("count", nonTriangles))
	}
	if outOfRange > 0 {
		p.log.Warn("skipped faces with invalid indices", zap.String("mesh", src.Name), zap.Int("count", outOfRange))
	}
	if len(indices) == 0 {
		return nil, ErrNoTriangles
	}

	m := mesh.New()
	if err := m.SetPositions(src.Positions); err != nil {
		return nil, err
	}
	if err := m.SetIndices(indices); err != nil {
		return nil, err
	}
	// Missing streams are left empty; the encoder rejects the mesh.
	if len(src.Normals) > 0 {
		if err := m.SetNormals(src.Normals); err != nil {
			return nil, err
		}
	}
	if len(src.TexCoords) > 0 {
		if err := m.SetTexCoords(src.TexCoords); err != nil {
			return nil, err
		}
	}

	if src.MaterialIndex >= 0 && src.MaterialIndex < len(s.Materials) {
		mat := s.Materials[src.MaterialIndex]
		m.Diffuse = mat.Diffuse
		m.Specular = mat.Specular
		m.Ambient = mat.Ambient
		if mat.DiffuseTexture != "" {
			m.DiffuseTexturePath = p.sourceTexture(mat.DiffuseTexture)
		}
	}
	return m, nil
}

// sourceTexture looks for name in the textures directory and queues it for
// import. It returns the asset path, or "" if the file does not exist.
func (p *Pipeline) sourceTexture(name string) string {
	candidate := filepath.Join(p.cfg.TexturesDir, filepath.Base(name))
	if _, err := os.Stat(candidate); err != nil {
		p.log.Warn("texture not found", zap.String("texture", name), zap.String("path", candidate))
		return ""
	}
	if p.deps.Assets != nil {
		if _, err := p.deps.Assets.ImportFile(candidate); err != nil {
			p.log.Warn("texture import failed", zap.String("path", candidate), zap.Error(err))
		}
	}
	return candidate
}

// nodeRecord converts the interchange hierarchy, mapping mesh indices onto
// mesh table positions and dropping references to meshes that were not
// written.
func nodeRecord(n *sceneimport.Node, tableIndex []int) *formats.NodeRecord {
	rec := &formats.NodeRecord{Name: n.Name}
	for _, idx := range n.MeshIndices {
		if idx >= 0 && idx < len(tableIndex) && tableIndex[idx] >= 0 {
			rec.MeshIndices = append(rec.MeshIndices, uint32(tableIndex[idx]))
		}
	}
	for _, c := range n.Children {
		rec.Children = append(rec.Children, nodeRecord(c, tableIndex))
	}
	return rec
}
