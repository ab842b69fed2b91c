// libtool converts interchange assets into the engine's library format and
// inspects library files.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/libforge/internal/config"
	"github.com/Faultbox/libforge/internal/engine/mesh"
	"github.com/Faultbox/libforge/internal/logger"
	"github.com/Faultbox/libforge/internal/resources"
	"github.com/Faultbox/libforge/internal/scene"
	"github.com/Faultbox/libforge/pkg/formats"
)

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	command := args[0]
	args = args[1:]

	code := 0
	switch command {
	case "export":
		code = cmdExport(cfg, args)
	case "import":
		code = cmdImport(cfg, args)
	case "inspect", "info":
		code = cmdInspect(args)
	case "resources", "res":
		code = cmdResources(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		code = 1
	}

	logger.Sync()
	os.Exit(code)
}

func printUsage() {
	fmt.Println(`libtool - asset library converter

Usage:
  libtool [flags] <command> [args]

Commands:
  export <asset>...             Convert .gltf/.glb/.rsm files into library meshes and a model
  import <file.model>           Load a model into an empty scene and print the hierarchy
  inspect <file>                Show a .mesh, .model or .rsm file
  resources [kind]              List the resource manifest (texture, mesh, model)

Flags:
  -config <path>   Config file (default ./libforge.yaml)
  -library <dir>   Library root
  -assets <dir>    Assets root
  -legacy          Write versionless library files
  -gpu             Upload through a hidden OpenGL context
  -debug           Enable debug logging

Examples:
  libtool export Assets/house.glb Assets/tower.rsm
  libtool -gpu import Library/Models/house.model
  libtool inspect Library/Meshes/house0.mesh
  libtool resources texture`)
}

func cmdExport(cfg *config.Config, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: libtool export <asset>...")
		return 1
	}

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	failed := 0
	for _, asset := range args {
		res, err := a.pipeline.ExportModel(asset)
		if err != nil {
			logger.Error("export failed", zap.String("source", asset), zap.Error(err))
			failed++
			continue
		}
		fmt.Printf("Exported: %s -> %s (%d meshes", asset, res.ModelPath, len(res.MeshPaths))
		if n := res.Skipped(); n > 0 {
			fmt.Printf(", %d skipped", n)
		}
		fmt.Println(")")
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "\n%d of %d exports failed\n", failed, len(args))
		return 1
	}
	return 0
}

func cmdImport(cfg *config.Config, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: libtool import <file.model>")
		return 1
	}

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	world := scene.NewNode("world", nil)
	defer world.Release()

	res, err := a.pipeline.ImportModel(args[0], world)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if res == nil {
			return 1
		}
	}

	printScene(world, 0)
	fmt.Printf("\nMeshes:   %d loaded, %d failed\n", res.MeshesLoaded, res.MeshesFailed)
	fmt.Printf("Nodes:    %d\n", res.Nodes)
	fmt.Printf("Textures: %d\n", res.Textures)
	if res.Warnings > 0 {
		fmt.Printf("Warnings: %d\n", res.Warnings)
	}
	if err != nil {
		return 1
	}
	return 0
}

func printScene(n *scene.Node, depth int) {
	line := strings.Repeat("  ", depth) + n.Name
	if n.Mesh != nil {
		line += fmt.Sprintf("  [%d verts, %d tris]", n.Mesh.VertexCount(), n.Mesh.FaceCount())
	}
	if len(n.Material.Textures) > 0 {
		line += fmt.Sprintf("  tex=%s", n.Material.Textures[0].Path)
	}
	fmt.Println(line)
	for _, c := range n.Children() {
		printScene(c, depth+1)
	}
}

func cmdInspect(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: libtool inspect <file.mesh|file.model|file.rsm>")
		return 1
	}

	path := args[0]
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mesh":
		err = inspectMesh(path)
	case ".model":
		err = inspectModel(path)
	case ".rsm":
		err = inspectRSM(path)
	default:
		err = fmt.Errorf("don't know how to inspect %s", path)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func inspectMesh(path string) error {
	m, err := mesh.ReadFile(path)
	if err != nil {
		return err
	}
	b := m.Bounds()

	fmt.Printf("Mesh:      %s\n", path)
	fmt.Printf("Vertices:  %d\n", m.VertexCount())
	fmt.Printf("Indices:   %d (%d triangles)\n", m.IndexCount(), m.FaceCount())
	fmt.Printf("Normals:   %d\n", len(m.Normals()))
	fmt.Printf("TexCoords: %d\n", len(m.TexCoords()))
	fmt.Printf("Bounds:    %v - %v\n", b.Min, b.Max)
	fmt.Printf("Diffuse:   %v\n", m.Diffuse)
	fmt.Printf("Specular:  %v\n", m.Specular)
	fmt.Printf("Ambient:   %v\n", m.Ambient)
	if m.DiffuseTexturePath != "" {
		fmt.Printf("Texture:   %s\n", m.DiffuseTexturePath)
	}
	return nil
}

func inspectModel(path string) error {
	model, err := formats.ParseModelFile(path)
	if err != nil {
		return err
	}

	version := "legacy"
	if model.Version != formats.LegacyVersion {
		version = fmt.Sprintf("%d", model.Version)
	}
	fmt.Printf("Model:   %s\n", path)
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Nodes:   %d\n", model.Root.CountNodes())
	fmt.Println()
	fmt.Println("Meshes:")
	for i, p := range model.MeshPaths {
		fmt.Printf("  %3d  %s\n", i, p)
	}
	fmt.Println()
	fmt.Println("Hierarchy:")
	printRecord(model.Root, 1)
	return nil
}

func printRecord(n *formats.NodeRecord, depth int) {
	line := strings.Repeat("  ", depth) + n.Name
	if len(n.MeshIndices) > 0 {
		line += fmt.Sprintf("  meshes=%v", n.MeshIndices)
	}
	fmt.Println(line)
	for _, c := range n.Children {
		printRecord(c, depth+1)
	}
}

func inspectRSM(path string) error {
	rsm, err := formats.ParseRSMFile(path)
	if err != nil {
		return err
	}

	fmt.Printf("RSM:       %s\n", path)
	fmt.Printf("Version:   %s\n", rsm.Version)
	fmt.Printf("Shading:   %s\n", rsm.Shading)
	fmt.Printf("Nodes:     %d\n", len(rsm.Nodes))
	fmt.Printf("Vertices:  %d\n", rsm.GetTotalVertexCount())
	fmt.Printf("Faces:     %d\n", rsm.GetTotalFaceCount())
	fmt.Printf("Animated:  %v\n", rsm.HasAnimation())
	fmt.Println()
	fmt.Println("Textures:")
	for i, tex := range rsm.Textures {
		fmt.Printf("  %3d  %s\n", i, tex)
	}
	return nil
}

func cmdResources(cfg *config.Config, args []string) int {
	kind := resources.KindUnknown
	if len(args) > 0 {
		k, err := resources.ParseKind(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		kind = k
	}

	lib, err := openLibrary(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	list := lib.List(kind)
	for _, r := range list {
		fmt.Printf("%s  %-8s %s -> %s\n", r.UID, r.Kind, r.AssetPath, r.LibraryPath)
	}
	fmt.Fprintf(os.Stderr, "\n(%d resources)\n", len(list))
	return 0
}
