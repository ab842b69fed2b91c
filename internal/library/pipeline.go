// Package library converts interchange scenes into the engine's binary
// library format and loads library models back into the scene graph.
//
// Export writes one .mesh file per interchange mesh and a .model file
// holding the mesh table and the node hierarchy. Import reads the model,
// loads and uploads every listed mesh and rebuilds the hierarchy under a
// caller-supplied parent node.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/libforge/internal/engine/gpu"
	"github.com/Faultbox/libforge/internal/engine/texture"
	"github.com/Faultbox/libforge/internal/resources"
	"github.com/Faultbox/libforge/internal/sceneimport"
	"github.com/Faultbox/libforge/pkg/formats"
)

// Pipeline errors.
var (
	ErrEmptyPath   = errors.New("empty path")
	ErrNoScene     = errors.New("importer returned no scene or no root node")
	ErrNilParent   = errors.New("nil parent node")
	ErrEmptyFile   = errors.New("model file is empty")
	ErrNoMeshes    = errors.New("no mesh of the model could be loaded")
	ErrNoPositions = errors.New("mesh has no positions")
	ErrNoTriangles = errors.New("mesh has no triangles")
	ErrTooDeep     = errors.New("node hierarchy too deep")
	ErrNoImporter  = errors.New("pipeline has no scene importer")
	ErrNoUploader  = errors.New("pipeline has no GPU uploader")
)

// MaxDepth bounds the node hierarchy depth accepted on import.
const MaxDepth = 1024

// SceneImporter parses interchange files.
type SceneImporter interface {
	Import(path string) (*sceneimport.Scene, error)
}

// TextureLoader loads library textures for imported meshes.
type TextureLoader interface {
	Load(path string) (*texture.Texture, error)
}

// Deps are the collaborators of a Pipeline. Export needs Importer and
// Import needs GPU. Resolver, Assets and Textures may be nil, which
// disables texture handling.
type Deps struct {
	Importer SceneImporter
	Resolver resources.Resolver
	Assets   resources.AssetImporter
	Textures TextureLoader
	GPU      gpu.Uploader
	Log      *zap.Logger
}

// Config holds the library directories and the file layout to write.
type Config struct {
	MeshDir     string
	ModelDir    string
	TexturesDir string // where exported meshes look for their source textures
	Layout      formats.Layout
}

// Pipeline runs exports and imports.
type Pipeline struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
}

// New creates a pipeline.
func New(cfg Config, deps Deps) *Pipeline {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, deps: deps, log: log}
}

// EnsureDirs creates the library and texture directories.
func (p *Pipeline) EnsureDirs() error {
	for _, dir := range []string{p.cfg.MeshDir, p.cfg.ModelDir, p.cfg.TexturesDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// MeshPath returns the file written for mesh index of a model named base.
func (p *Pipeline) MeshPath(base string, index int) string {
	return filepath.Join(p.cfg.MeshDir, fmt.Sprintf("%s%d.mesh", base, index))
}

// ModelPath returns the model file written for base.
func (p *Pipeline) ModelPath(base string) string {
	return filepath.Join(p.cfg.ModelDir, base+".model")
}

// BaseName strips the directory and extension from path.
func BaseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
