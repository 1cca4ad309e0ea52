package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. KITTI_REPLAY_SPEED.
const EnvPrefix = "KITTI_REPLAY"

// maxFileSize caps config files read by Load.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// ReplayConfig holds the replay settings. Every field is optional; the Get*
// methods supply defaults for fields left unset, so partial files are safe.
type ReplayConfig struct {
	Root  *string  `mapstructure:"root"`
	Speed *float64 `mapstructure:"speed"`

	// CatalogPath enables the sqlite run catalog when set.
	CatalogPath *string `mapstructure:"catalog_path"`
	// PlotPath enables the timeline PNG when set.
	PlotPath *string `mapstructure:"plot_path"`

	EnableGray   *bool `mapstructure:"enable_gray"`
	EnableColor  *bool `mapstructure:"enable_color"`
	EnableLidar  *bool `mapstructure:"enable_lidar"`
	EnableGPSIMU *bool `mapstructure:"enable_gpsimu"`

	// SequenceGlob keeps only sequence folders whose name matches.
	SequenceGlob *string `mapstructure:"sequence_glob"`

	Debug *bool `mapstructure:"debug"`
}

var keys = []string{
	"root", "speed", "catalog_path", "plot_path",
	"enable_gray", "enable_color", "enable_lidar", "enable_gpsimu",
	"sequence_glob", "debug",
}

// Empty returns a ReplayConfig with every field unset.
func Empty() *ReplayConfig {
	return &ReplayConfig{}
}

// Load reads a config file (json, yaml or toml, chosen by extension) and
// applies KITTI_REPLAY_* environment overrides on top. An empty path reads
// the environment only.
func Load(path string) (*ReplayConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", k, err)
		}
	}

	if path != "" {
		cleanPath := filepath.Clean(path)
		switch ext := filepath.Ext(cleanPath); ext {
		case ".json", ".yaml", ".yml", ".toml":
		default:
			return nil, fmt.Errorf("config file must be .json, .yaml or .toml, got %q", ext)
		}

		fileInfo, err := os.Stat(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if fileInfo.Size() > maxFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
		}

		v.SetConfigFile(cleanPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg := Empty()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ReplayConfig) Validate() error {
	if c.Speed != nil && *c.Speed <= 0 {
		return fmt.Errorf("speed must be positive, got %f", *c.Speed)
	}

	if c.SequenceGlob != nil && *c.SequenceGlob != "" {
		if _, err := filepath.Match(*c.SequenceGlob, ""); err != nil {
			return fmt.Errorf("invalid sequence_glob '%s': %w", *c.SequenceGlob, err)
		}
	}

	if c.CatalogPath != nil && *c.CatalogPath != "" && c.PlotPath != nil && filepath.Clean(*c.CatalogPath) == filepath.Clean(*c.PlotPath) {
		return fmt.Errorf("catalog_path and plot_path must differ, both are %q", *c.CatalogPath)
	}

	if !c.GetEnableGray() && !c.GetEnableColor() && !c.GetEnableLidar() && !c.GetEnableGPSIMU() {
		return fmt.Errorf("at least one sensor must be enabled")
	}

	return nil
}

// GetRoot returns the dataset root, or "" when unset.
func (c *ReplayConfig) GetRoot() string {
	if c.Root == nil {
		return ""
	}
	return *c.Root
}

// GetSpeed returns the playback multiplier or the default.
func (c *ReplayConfig) GetSpeed() float64 {
	if c.Speed == nil {
		return 1.0
	}
	return *c.Speed
}

// GetCatalogPath returns the catalog database path, "" meaning disabled.
func (c *ReplayConfig) GetCatalogPath() string {
	if c.CatalogPath == nil {
		return ""
	}
	return *c.CatalogPath
}

// GetPlotPath returns the timeline image path, "" meaning disabled.
func (c *ReplayConfig) GetPlotPath() string {
	if c.PlotPath == nil {
		return ""
	}
	return *c.PlotPath
}

// GetEnableGray returns the enable_gray value or the default.
func (c *ReplayConfig) GetEnableGray() bool {
	if c.EnableGray == nil {
		return true
	}
	return *c.EnableGray
}

// GetEnableColor returns the enable_color value or the default.
func (c *ReplayConfig) GetEnableColor() bool {
	if c.EnableColor == nil {
		return true
	}
	return *c.EnableColor
}

// GetEnableLidar returns the enable_lidar value or the default.
func (c *ReplayConfig) GetEnableLidar() bool {
	if c.EnableLidar == nil {
		return true
	}
	return *c.EnableLidar
}

// GetEnableGPSIMU returns the enable_gpsimu value or the default.
func (c *ReplayConfig) GetEnableGPSIMU() bool {
	if c.EnableGPSIMU == nil {
		return true
	}
	return *c.EnableGPSIMU
}

// GetSequenceGlob returns the sequence name pattern, "" meaning all.
func (c *ReplayConfig) GetSequenceGlob() string {
	if c.SequenceGlob == nil {
		return ""
	}
	return *c.SequenceGlob
}

// GetDebug returns the debug value or the default.
func (c *ReplayConfig) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}

// EnabledSensors lists the enabled sensor names in replay priority order.
func (c *ReplayConfig) EnabledSensors() []string {
	var out []string
	if c.GetEnableGray() {
		out = append(out, "stereo_gray")
	}
	if c.GetEnableColor() {
		out = append(out, "stereo_color")
	}
	if c.GetEnableLidar() {
		out = append(out, "lidar")
	}
	if c.GetEnableGPSIMU() {
		out = append(out, "gpsimu")
	}
	return out
}

// MatchSequence reports whether a sequence folder name passes SequenceGlob.
func (c *ReplayConfig) MatchSequence(name string) bool {
	glob := c.GetSequenceGlob()
	if glob == "" {
		return true
	}
	ok, err := filepath.Match(glob, name)
	return err == nil && ok
}
