package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagAtlasSize = flag.Int("atlas-size", 0, "Physical atlas edge in texels")
	flagCaptures  = flag.Int("captures", 0, "Page capture budget per frame")
	flagDetail    = flag.Float64("detail", 0, "Scene detail scale")
	flagStatsAddr = flag.String("stats", "", "Websocket stats server address")
	flagFreeze    = flag.Bool("freeze", false, "Freeze surface cache updates")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
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
	if *flagAtlasSize > 0 {
		cfg.SurfaceCache.AtlasSize = *flagAtlasSize
	}
	if *flagCaptures > 0 {
		cfg.SurfaceCache.CapturesPerFrame = *flagCaptures
	}
	if *flagDetail > 0 {
		cfg.Scheduler.SceneDetail = float32(*flagDetail)
	}
	if *flagStatsAddr != "" {
		cfg.Debug.StatsAddr = *flagStatsAddr
	}
	if *flagFreeze {
		cfg.Debug.FreezeUpdates = true
	}
}
