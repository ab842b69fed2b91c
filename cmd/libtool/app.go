package main

import (
	"fmt"

	"github.com/Faultbox/libforge/internal/config"
	"github.com/Faultbox/libforge/internal/engine/gpu"
	"github.com/Faultbox/libforge/internal/engine/gpu/opengl"
	"github.com/Faultbox/libforge/internal/engine/texture"
	"github.com/Faultbox/libforge/internal/engine/window"
	"github.com/Faultbox/libforge/internal/library"
	"github.com/Faultbox/libforge/internal/logger"
	"github.com/Faultbox/libforge/internal/resources"
	"github.com/Faultbox/libforge/internal/sceneimport"
)

// app wires the pipeline and its collaborators from the config.
type app struct {
	pipeline *library.Pipeline
	win      *window.Window
}

func openLibrary(cfg *config.Config) (*resources.Library, error) {
	return resources.Open(resources.Options{
		Root:       cfg.Library.Root,
		TextureDir: cfg.Library.TextureDir,
		Manifest:   cfg.Library.Manifest,
	}, logger.Named("resources"))
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{}

	lib, err := openLibrary(cfg)
	if err != nil {
		return nil, err
	}

	var uploader gpu.Uploader = gpu.NewHeadless()
	if cfg.GPU.Enabled {
		a.win, err = window.New(window.Config{
			Title:  "libtool",
			Width:  cfg.GPU.Width,
			Height: cfg.GPU.Height,
			Hidden: true,
		}, logger.Named("window"))
		if err != nil {
			return nil, fmt.Errorf("creating GL context: %w", err)
		}
		gl, err := opengl.New(logger.Named("gl"))
		if err != nil {
			a.win.Close()
			return nil, err
		}
		uploader = gl
	}

	textures := texture.NewLoader(uploader, logger.Named("texture"))
	textures.MagentaKey = cfg.Import.MagentaKey

	importer := sceneimport.NewRegistry(sceneimport.Options{
		GenerateNormals:  cfg.Import.GenerateNormals,
		DefaultTexCoords: cfg.Import.DefaultTexCoords,
	}, logger.Named("import"))

	a.pipeline = library.New(library.Config{
		MeshDir:     cfg.Library.MeshPath(),
		ModelDir:    cfg.Library.ModelPath(),
		TexturesDir: cfg.Library.TexturePath(),
		Layout:      cfg.Library.Layout(),
	}, library.Deps{
		Importer: importer,
		Resolver: lib,
		Assets:   lib,
		Textures: textures,
		GPU:      uploader,
		Log:      logger.Named("library"),
	})
	if err := a.pipeline.EnsureDirs(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close tears down the GL context, if any.
func (a *app) Close() {
	if a.win != nil {
		a.win.Close()
		a.win = nil
	}
}
