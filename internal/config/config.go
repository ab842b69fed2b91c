// Package config handles tool configuration loading and management.
package config

import (
	"path/filepath"

	"github.com/Faultbox/libforge/pkg/formats"
)

// Config holds all settings.
type Config struct {
	Library LibraryConfig `yaml:"library"`
	Import  ImportConfig  `yaml:"import"`
	GPU     GPUConfig     `yaml:"gpu"`
	Logging LoggingConfig `yaml:"logging"`
}

// LibraryConfig holds the library layout. Subdirectories are relative to Root.
type LibraryConfig struct {
	Root       string       `yaml:"root"`
	MeshDir    string       `yaml:"mesh_dir"`
	ModelDir   string       `yaml:"model_dir"`
	TextureDir string       `yaml:"texture_dir"`
	Manifest   string       `yaml:"manifest"`
	Legacy     bool         `yaml:"legacy"` // write versionless files
	Assets     AssetsConfig `yaml:"assets"`
}

// AssetsConfig holds the source asset tree.
type AssetsConfig struct {
	Root        string `yaml:"root"`
	TexturesDir string `yaml:"textures_dir"` // relative to Root
}

// ImportConfig holds interchange import settings.
type ImportConfig struct {
	GenerateNormals  bool `yaml:"generate_normals"`
	DefaultTexCoords bool `yaml:"default_texcoords"`
	MagentaKey       bool `yaml:"magenta_key"` // key out magenta in loaded textures
}

// GPUConfig holds settings for the hidden OpenGL context.
type GPUConfig struct {
	Enabled bool `yaml:"enabled"`
	Width   int  `yaml:"width"`
	Height  int  `yaml:"height"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Library: LibraryConfig{
			Root:       "Library",
			MeshDir:    "Meshes",
			ModelDir:   "Models",
			TextureDir: "Textures",
			Manifest:   "resources.yaml",
			Assets: AssetsConfig{
				Root:        "Assets",
				TexturesDir: "Textures",
			},
		},
		Import: ImportConfig{
			GenerateNormals:  true,
			DefaultTexCoords: true,
		},
		GPU: GPUConfig{
			Enabled: false,
			Width:   64,
			Height:  64,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// MeshPath returns the mesh directory.
func (l LibraryConfig) MeshPath() string { return filepath.Join(l.Root, l.MeshDir) }

// ModelPath returns the model directory.
func (l LibraryConfig) ModelPath() string { return filepath.Join(l.Root, l.ModelDir) }

// TexturePath returns the directory source textures are looked up in.
func (l LibraryConfig) TexturePath() string {
	return filepath.Join(l.Assets.Root, l.Assets.TexturesDir)
}

// Layout returns the file layout to write.
func (l LibraryConfig) Layout() formats.Layout {
	if l.Legacy {
		return formats.LayoutLegacy
	}
	return formats.LayoutTagged
}
