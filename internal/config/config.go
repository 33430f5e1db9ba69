package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	TempDirName  string        `yaml:"temp_dir_name"`
	StageTimeout time.Duration `yaml:"stage_timeout"`

	// Canvas settings
	Canvas CanvasConfig `yaml:"canvas"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Subtitle settings
	Subtitles SubtitleConfig `yaml:"subtitles"`

	// Editable-bundle settings
	Draft DraftConfig `yaml:"draft"`
}

type CanvasConfig struct {
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	FPS    float64 `yaml:"fps"`
}

type FFmpegConfig struct {
	BinaryPath       string `yaml:"binary_path"`
	ProbePath        string `yaml:"probe_path"`
	Threads          int    `yaml:"threads"`
	Preset           string `yaml:"preset"`
	PlaceholderColor string `yaml:"placeholder_color"`
}

type SubtitleConfig struct {
	FontName     string `yaml:"font_name"`
	FontSize     int    `yaml:"font_size"`
	FontColor    string `yaml:"font_color"`
	OutlineWidth int    `yaml:"outline_width"`
}

type DraftConfig struct {
	// RootDir is the target editor's draft root; empty means discover the
	// usual installation locations at build time.
	RootDir string `yaml:"root_dir"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func defaultConfig() *Config {
	return &Config{
		TempDirName:  ".cutforge-tmp",
		StageTimeout: 5 * time.Minute,
		Canvas: CanvasConfig{
			Width:  1280,
			Height: 720,
			FPS:    30,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath:       "ffmpeg",
			ProbePath:        "ffprobe",
			Threads:          0,
			Preset:           "medium",
			PlaceholderColor: "0x1F1F2E",
		},
		Subtitles: SubtitleConfig{
			FontName:     "Arial",
			FontSize:     28,
			FontColor:    "&H00FFFFFF",
			OutlineWidth: 2,
		},
		Draft: DraftConfig{},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".cutforge", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
