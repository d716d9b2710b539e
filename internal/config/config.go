// Package config loads the dataset build configuration.
//
// A build is described by one YAML file plus any number of dotted
// key=value overrides (dataset.save_dataset=false), applied on top of
// the file before it is decoded. Unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no --config flag is given and the file exists.
const DefaultConfigPath = "config/rgb_to_normal.yaml"

// Config is the validated build configuration. It is passed by value.
type Config struct {
	BasePath          string     `yaml:"base_path"`
	MMToPixel         float64    `yaml:"mm_to_pixel"`
	BearingDiameterMM float64    `yaml:"bearing_diameter_mm"`
	Dataloader        Dataloader `yaml:"dataloader"`
	Dataset           Dataset    `yaml:"dataset"`
}

// Dataloader holds the data source options.
type Dataloader struct {
	AnnotFlag bool   `yaml:"annot_flag"`
	AnnotFile string `yaml:"annot_file"` // relative to base_path unless absolute
	ImgType   string `yaml:"img_type"`
}

// Dataset holds the output options.
type Dataset struct {
	SaveDataset    bool   `yaml:"save_dataset"`
	Rows           int    `yaml:"rows"`
	Cols           int    `yaml:"cols"`
	Interpolation  string `yaml:"interpolation"`
	NormalBitDepth int    `yaml:"normal_bit_depth"`
}

// Default returns the configuration for a DIGIT sensor (320x240 frames,
// 6mm calibration bearing) downsampled 2:1.
func Default() Config {
	return Config{
		BasePath:          ".",
		MMToPixel:         21.09,
		BearingDiameterMM: 6.0,
		Dataloader: Dataloader{
			AnnotFlag: true,
			AnnotFile: filepath.Join("csv", "annotate.csv"),
			ImgType:   "png",
		},
		Dataset: Dataset{
			SaveDataset:    true,
			Rows:           160,
			Cols:           120,
			Interpolation:  "area",
			NormalBitDepth: 8,
		},
	}
}

// Load reads path (may be empty for defaults only), applies overrides and
// validates the result.
func Load(path string, overrides []string) (Config, error) {
	tree := map[string]interface{}{}
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return Config{}, fmt.Errorf("failed to parse config YAML: %w", err)
		}
		if tree == nil {
			tree = map[string]interface{}{}
		}
	}

	for _, o := range overrides {
		if err := applyOverride(tree, o); err != nil {
			return Config{}, err
		}
	}

	cfg, err := decode(tree)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// decode re-encodes the merged tree and strictly decodes it over the defaults.
func decode(tree map[string]interface{}) (Config, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return Config{}, fmt.Errorf("failed to encode merged config: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// applyOverride sets one dotted key=value pair in tree. The value is parsed
// as a YAML scalar so "false", "160" and "0.5" keep their types.
func applyOverride(tree map[string]interface{}, override string) error {
	key, raw, ok := strings.Cut(override, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("invalid override %q: expected key=value", override)
	}

	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("invalid override %q: empty value", override)
	}
	var value interface{}
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return fmt.Errorf("invalid override %q: %w", override, err)
	}
	// A null would decode as "unchanged" and silently keep the default.
	if value == nil {
		return fmt.Errorf("invalid override %q: empty value", override)
	}

	parts := strings.Split(key, ".")
	node := tree
	for _, p := range parts[:len(parts)-1] {
		child, exists := node[p]
		if !exists {
			next := map[string]interface{}{}
			node[p] = next
			node = next
			continue
		}
		next, isMap := child.(map[string]interface{})
		if !isMap {
			return fmt.Errorf("invalid override %q: %s is not a section", override, p)
		}
		node = next
	}
	node[parts[len(parts)-1]] = value
	return nil
}

// Validate checks that the configuration values are usable.
func (c Config) Validate() error {
	if c.BasePath == "" {
		return errors.New("base_path must be set")
	}
	if c.MMToPixel <= 0 {
		return fmt.Errorf("mm_to_pixel must be positive, got %f", c.MMToPixel)
	}
	if c.BearingDiameterMM <= 0 {
		return fmt.Errorf("bearing_diameter_mm must be positive, got %f", c.BearingDiameterMM)
	}
	if c.Dataloader.AnnotFlag && c.Dataloader.AnnotFile == "" {
		return errors.New("dataloader.annot_file must be set when annot_flag is true")
	}
	if c.Dataloader.ImgType == "" {
		return errors.New("dataloader.img_type must be set")
	}
	if c.Dataset.Rows <= 0 || c.Dataset.Cols <= 0 {
		return fmt.Errorf("dataset.rows and dataset.cols must be positive, got %dx%d", c.Dataset.Rows, c.Dataset.Cols)
	}
	switch c.Dataset.Interpolation {
	case "area", "linear":
	default:
		return fmt.Errorf("dataset.interpolation must be area or linear, got %q", c.Dataset.Interpolation)
	}
	if c.Dataset.NormalBitDepth != 8 && c.Dataset.NormalBitDepth != 16 {
		return fmt.Errorf("dataset.normal_bit_depth must be 8 or 16, got %d", c.Dataset.NormalBitDepth)
	}
	return nil
}

// ImagesDir is the folder holding the raw sensor images.
func (c Config) ImagesDir() string {
	return filepath.Join(c.BasePath, "images")
}

// AnnotationPath resolves the annotation CSV against base_path.
func (c Config) AnnotationPath() string {
	if filepath.IsAbs(c.Dataloader.AnnotFile) {
		return c.Dataloader.AnnotFile
	}
	return filepath.Join(c.BasePath, c.Dataloader.AnnotFile)
}
