package resources

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Library errors.
var (
	ErrNotRegular      = errors.New("not a regular file")
	ErrUnsupportedKind = errors.New("file kind cannot be imported")
	ErrContentMismatch = errors.New("file content does not match its extension")
)

// Resource is one entry of the library manifest.
type Resource struct {
	UID         uuid.UUID
	Kind        Kind
	AssetPath   string // source file, as referenced by meshes and tools
	LibraryPath string // file inside the library
	MIME        string
}

// Resolver finds registered resources.
type Resolver interface {
	Find(path string, kind Kind) (*Resource, bool)
}

// AssetImporter brings files into the library.
type AssetImporter interface {
	ImportFile(assetPath string) (*Resource, error)
	Register(kind Kind, assetPath, libraryPath string) (*Resource, error)
}

// Options configures a Library.
type Options struct {
	// Root is the library directory. Imported textures are copied to
	// Root/TextureDir.
	Root       string
	TextureDir string
	// Manifest is the YAML file listing resources, relative to Root.
	Manifest string
}

// Library is the resource registry backed by a YAML manifest.
// It is safe for concurrent use.
type Library struct {
	opts Options
	log  *zap.Logger

	mu      sync.RWMutex
	byUID   map[uuid.UUID]*Resource
	byAsset map[string]*Resource
	byLib   map[string]*Resource
}

var (
	_ Resolver      = (*Library)(nil)
	_ AssetImporter = (*Library)(nil)
)

type manifestEntry struct {
	UID     string `yaml:"uid"`
	Kind    Kind   `yaml:"kind"`
	Asset   string `yaml:"asset"`
	Library string `yaml:"library"`
	MIME    string `yaml:"mime,omitempty"`
}

type manifest struct {
	Resources []manifestEntry `yaml:"resources"`
}

// Open loads the manifest under opts.Root, or starts an empty library if it
// does not exist yet.
func Open(opts Options, log *zap.Logger) (*Library, error) {
	l := &Library{
		opts:    opts,
		log:     log,
		byUID:   make(map[uuid.UUID]*Resource),
		byAsset: make(map[string]*Resource),
		byLib:   make(map[string]*Resource),
	}

	data, err := os.ReadFile(l.manifestPath())
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	for _, e := range m.Resources {
		uid, err := uuid.Parse(e.UID)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %q: %w", e.Asset, err)
		}
		l.add(&Resource{UID: uid, Kind: e.Kind, AssetPath: e.Asset, LibraryPath: e.Library, MIME: e.MIME})
	}

	log.Debug("manifest loaded", zap.String("path", l.manifestPath()), zap.Int("resources", len(l.byUID)))
	return l, nil
}

func (l *Library) manifestPath() string {
	return filepath.Join(l.opts.Root, l.opts.Manifest)
}

func cleanKey(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// add indexes r. Callers hold mu.
func (l *Library) add(r *Resource) {
	if old, ok := l.byAsset[cleanKey(r.AssetPath)]; ok {
		delete(l.byUID, old.UID)
		delete(l.byLib, cleanKey(old.LibraryPath))
	}
	l.byUID[r.UID] = r
	l.byAsset[cleanKey(r.AssetPath)] = r
	if r.LibraryPath != "" {
		l.byLib[cleanKey(r.LibraryPath)] = r
	}
}

// Find looks path up as an asset path, then as a library path. KindUnknown
// matches any kind.
func (l *Library) Find(path string, kind Kind) (*Resource, bool) {
	if path == "" {
		return nil, false
	}
	key := cleanKey(path)

	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.byAsset[key]
	if !ok {
		r, ok = l.byLib[key]
	}
	if !ok || (kind != KindUnknown && r.Kind != kind) {
		return nil, false
	}
	res := *r
	return &res, true
}

// Get returns the resource with the given UID.
func (l *Library) Get(uid uuid.UUID) (*Resource, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.byUID[uid]
	if !ok {
		return nil, false
	}
	res := *r
	return &res, true
}

// List returns the resources of kind (all for KindUnknown) sorted by asset path.
func (l *Library) List(kind Kind) []Resource {
	l.mu.RLock()
	out := make([]Resource, 0, len(l.byUID))
	for _, r := range l.byUID {
		if kind == KindUnknown || r.Kind == kind {
			out = append(out, *r)
		}
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AssetPath < out[j].AssetPath })
	return out
}

// Register records a file that was produced outside the library (exported
// meshes and models) and saves the manifest. Registering the same asset path
// again replaces the entry but keeps its UID.
func (l *Library) Register(kind Kind, assetPath, libraryPath string) (*Resource, error) {
	return l.register(&Resource{Kind: kind, AssetPath: assetPath, LibraryPath: libraryPath})
}

func (l *Library) register(r *Resource) (*Resource, error) {
	l.mu.Lock()
	if old, ok := l.byAsset[cleanKey(r.AssetPath)]; ok {
		r.UID = old.UID
	} else {
		uid, err := uuid.NewRandom()
		if err != nil {
			l.mu.Unlock()
			return nil, fmt.Errorf("generating uid: %w", err)
		}
		r.UID = uid
	}
	l.add(r)
	l.mu.Unlock()

	l.log.Debug("resource registered",
		zap.String("uid", r.UID.String()),
		zap.Stringer("kind", r.Kind),
		zap.String("asset", r.AssetPath),
		zap.String("library", r.LibraryPath),
	)

	res := *r
	return &res, l.Save()
}

// ImportFile copies a texture into the library and registers it. A file
// that is already registered and present in the library is returned as is.
func (l *Library) ImportFile(assetPath string) (*Resource, error) {
	if r, ok := l.Find(assetPath, KindUnknown); ok {
		if _, err := os.Stat(r.LibraryPath); err == nil {
			return r, nil
		}
	}

	kind := KindOf(assetPath)
	if kind != KindTexture {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedKind, assetPath, kind)
	}

	info, err := os.Stat(assetPath)
	if err != nil {
		return nil, fmt.Errorf("importing %s: %w", assetPath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("importing %s: %w", assetPath, ErrNotRegular)
	}

	mime, err := sniffImage(assetPath)
	if err != nil {
		return nil, err
	}

	uid, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generating uid: %w", err)
	}
	dst := filepath.Join(l.opts.Root, l.opts.TextureDir, uid.String()+filepath.Ext(assetPath))
	if err := copyFile(assetPath, dst); err != nil {
		return nil, fmt.Errorf("importing %s: %w", assetPath, err)
	}

	return l.register(&Resource{Kind: kind, AssetPath: assetPath, LibraryPath: dst, MIME: mime})
}

// sniffImage checks the file header. Formats without a signature (TGA) pass
// with an empty MIME type.
func sniffImage(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	head = head[:n]

	kind, _ := filetype.Match(head)
	if kind == filetype.Unknown {
		return "", nil
	}
	if !filetype.IsImage(head) {
		return "", fmt.Errorf("%w: %s is %s", ErrContentMismatch, path, kind.MIME.Value)
	}
	return kind.MIME.Value, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Save writes the manifest.
func (l *Library) Save() error {
	l.mu.RLock()
	var m manifest
	for _, r := range l.byUID {
		m.Resources = append(m.Resources, manifestEntry{
			UID:     r.UID.String(),
			Kind:    r.Kind,
			Asset:   r.AssetPath,
			Library: r.LibraryPath,
			MIME:    r.MIME,
		})
	}
	l.mu.RUnlock()

	sort.Slice(m.Resources, func(i, j int) bool { return m.Resources[i].Asset < m.Resources[j].Asset })

	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.manifestPath()), 0755); err != nil {
		return fmt.Errorf("creating library directory: %w", err)
	}
	if err := os.WriteFile(l.manifestPath(), data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
