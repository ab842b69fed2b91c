package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagLibrary = flag.String("library", "", "Library root directory")
	flagAssets  = flag.String("assets", "", "Assets root directory")
	flagLegacy  = flag.Bool("legacy", false, "Write versionless library files")
	flagGPU     = flag.Bool("gpu", false, "Upload through a hidden OpenGL context")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLibrary != "" {
		cfg.Library.Root = *flagLibrary
	}
	if *flagAssets != "" {
		cfg.Library.Assets.Root = *flagAssets
	}
	if *flagLegacy {
		cfg.Library.Legacy = true
	}
	if *flagGPU {
		cfg.GPU.Enabled = true
	}
}
