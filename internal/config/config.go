package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config — настройки приложения, читаются из ~/.slipsnap/config.yaml.
// Неизвестные ключи игнорируются, известные приводятся к допустимым
// диапазонам при загрузке.
type Config struct {
	VideoFPS         int             `yaml:"video_fps"`
	VideoDurationSec int             `yaml:"video_duration_sec"`
	VideoFormat      string          `yaml:"video_default_format"`
	LastSaveDir      string          `yaml:"video_last_save_directory"`
	JPEGQuality      int             `yaml:"jpeg_quality"`
	MaxExportFrames  int             `yaml:"max_export_frames"`
	GIFMinDelayMs    int             `yaml:"gif_min_delay_ms"`
	ZoomLensFactor   float64         `yaml:"zoom_lens_factor"`
	ZoomLensRadius   int             `yaml:"zoom_lens_radius"`
	ImportDPI        int             `yaml:"import_dpi"`
	Workers          int             `yaml:"workers"`
	HistoryKeep      int             `yaml:"history_keep"`
	DisplayScale     map[int]float64 `yaml:"display_scale"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		VideoFPS:         15,
		VideoDurationSec: 6,
		VideoFormat:      "mp4",
		JPEGQuality:      90,
		MaxExportFrames:  120,
		GIFMinDelayMs:    20,
		ZoomLensFactor:   2.5,
		ZoomLensRadius:   120,
		ImportDPI:        150,
		Workers:          0, // 0 = runtime.NumCPU() на стороне пайплайна
		HistoryKeep:      10,
	}
}

// DefaultPath returns the config file location in the user's home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".slipsnap", "config.yaml")
	}
	return filepath.Join(home, ".slipsnap", "config.yaml")
}

// Load читает конфиг и накладывает его на значения по умолчанию.
// Отсутствующий файл не считается ошибкой.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("ошибка чтения конфига %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфига %s: %w", path, err)
	}
	cfg.clamp()
	return cfg, nil
}

// Save записывает конфиг на диск, создавая директорию при необходимости.
func Save(cfg *Config, path string) error {
	c := *cfg
	c.clamp()
	data, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) clamp() {
	c.VideoFPS = clampInt(c.VideoFPS, 10, 24)
	c.VideoDurationSec = clampInt(c.VideoDurationSec, 5, 10)
	if c.VideoFormat != "gif" {
		c.VideoFormat = "mp4"
	}
	c.JPEGQuality = clampInt(c.JPEGQuality, 1, 100)
	if c.MaxExportFrames < 2 {
		c.MaxExportFrames = 120
	}
	if c.GIFMinDelayMs < 20 {
		c.GIFMinDelayMs = 20
	}
	c.ZoomLensFactor = clampFloat(c.ZoomLensFactor, 1.2, 8.0)
	c.ZoomLensRadius = clampInt(c.ZoomLensRadius, 60, 260)
	if c.ImportDPI <= 0 {
		c.ImportDPI = 150
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	if c.HistoryKeep <= 0 {
		c.HistoryKeep = 10
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
