// Package config handles renderer configuration loading and management.
package config

// Config holds all renderer settings.
type Config struct {
	SurfaceCache SurfaceCacheConfig `yaml:"surface_cache"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	MeshCards    MeshCardsConfig    `yaml:"mesh_cards"`
	Debug        DebugConfig        `yaml:"debug"`
	Viewer       ViewerConfig       `yaml:"viewer"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// SurfaceCacheConfig holds physical atlas and capture budget settings.
type SurfaceCacheConfig struct {
	AtlasSize               int     `yaml:"atlas_size"`                  // physical atlas edge in texels
	CapturesPerFrame        int     `yaml:"captures_per_frame"`          // page capture budget per frame
	CaptureFactor           int     `yaml:"capture_factor"`              // capture atlas area = physical / factor
	RefreshFraction         float32 `yaml:"refresh_fraction"`            // fraction of atlas re-captured per frame
	FramesToKeepUnusedPages int     `yaml:"frames_to_keep_unused_pages"` // idle eviction window
	FeedbackTileSize        int     `yaml:"feedback_tile_size"`
}

// SchedulerConfig holds card visibility and resolution selection settings.
type SchedulerConfig struct {
	TexelDensityScale    float32 `yaml:"texel_density_scale"`
	MaxTexelDensity      float32 `yaml:"max_texel_density"`
	MinCardResolution    int     `yaml:"min_card_resolution"`
	MaxCardResolution    int     `yaml:"max_card_resolution"`
	MaxDistance          float32 `yaml:"max_distance"`
	SceneDetail          float32 `yaml:"scene_detail"`
	FarFieldTexelDensity float32 `yaml:"far_field_texel_density"`
	FarFieldDistance     float32 `yaml:"far_field_distance"`
	PrimitivesPerTask    int     `yaml:"primitives_per_task"`
	MeshCardsPerTask     int     `yaml:"mesh_cards_per_task"`
	Parallel             bool    `yaml:"parallel"`
}

// MeshCardsConfig holds card generation and merge settings.
type MeshCardsConfig struct {
	MinSize               float32 `yaml:"min_size"`
	MaxLOD                int     `yaml:"max_lod"`
	MergedMinSurfaceArea  float32 `yaml:"merged_min_surface_area"`
	MergedResolutionScale float32 `yaml:"merged_resolution_scale"`
	MergedMaxWorldSize    float32 `yaml:"merged_max_world_size"`
}

// DebugConfig holds testing and diagnostics settings.
type DebugConfig struct {
	FixedResolution   int    `yaml:"fixed_resolution"` // <= 0 disables the override
	FreezeUpdates     bool   `yaml:"freeze_updates"`
	ResetEveryNFrames int    `yaml:"reset_every_n_frames"`
	StatsAddr         string `yaml:"stats_addr"` // websocket stats server, empty disables
}

// ViewerConfig holds atlas viewer window settings.
type ViewerConfig struct {
	Width  int  `yaml:"width"`
	Height int  `yaml:"height"`
	VSync  bool `yaml:"vsync"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		SurfaceCache: SurfaceCacheConfig{
			AtlasSize:               4096,
			CapturesPerFrame:        300,
			CaptureFactor:           64,
			RefreshFraction:         0.125,
			FramesToKeepUnusedPages: 256,
			FeedbackTileSize:        16,
		},
		Scheduler: SchedulerConfig{
			TexelDensityScale:    100,
			MaxTexelDensity:      0.2,
			MinCardResolution:    4,
			MaxCardResolution:    512,
			MaxDistance:          20000,
			SceneDetail:          1,
			FarFieldTexelDensity: 0.001,
			FarFieldDistance:     40000,
			PrimitivesPerTask:    128,
			MeshCardsPerTask:     128,
			Parallel:             true,
		},
		MeshCards: MeshCardsConfig{
			MinSize:               10,
			MaxLOD:                1,
			MergedMinSurfaceArea:  0.05,
			MergedResolutionScale: 0.3,
			MergedMaxWorldSize:    10000,
		},
		Debug: DebugConfig{
			FixedResolution:   -1,
			FreezeUpdates:     false,
			ResetEveryNFrames: 0,
			StatsAddr:         "",
		},
		Viewer: ViewerConfig{
			Width:  1024,
			Height: 1024,
			VSync:  true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
