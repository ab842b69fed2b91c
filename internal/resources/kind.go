// Package resources tracks the files known to the asset library: source
// assets under the assets root and their copies or conversions under the
// library root.
package resources

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the category of a resource.
type Kind int

const (
	KindUnknown Kind = iota
	KindTexture
	KindMesh
	KindModel
	KindScene // interchange scene (glTF, RSM)
)

var kindNames = [...]string{
	KindUnknown: "unknown",
	KindTexture: "texture",
	KindMesh:    "mesh",
	KindModel:   "model",
	KindScene:   "scene",
}

// String returns the lower-case kind name.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Unknown(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(k), nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown resource kind %q", s)
}

// MarshalYAML writes the kind by name.
func (k Kind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// UnmarshalYAML reads a kind name.
func (k *Kind) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseKind(value.Value)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

var extensionKinds = map[string]Kind{
	".png":   KindTexture,
	".jpg":   KindTexture,
	".jpeg":  KindTexture,
	".tga":   KindTexture,
	".bmp":   KindTexture,
	".tif":   KindTexture,
	".tiff":  KindTexture,
	".mesh":  KindMesh,
	".model": KindModel,
	".gltf":  KindScene,
	".glb":   KindScene,
	".rsm":   KindScene,
}

// KindFromExtension maps a file extension (with or without the dot, any
// case) to a kind.
func KindFromExtension(ext string) Kind {
	ext = strings.ToLower(ext)
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	return extensionKinds[ext]
}

// KindOf returns the kind of path by its extension.
func KindOf(path string) Kind {
	return KindFromExtension(filepath.Ext(path))
}
