package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig carries the defaults a command falls back to when its flags
// are not set. Flags always win over the file.
type fileConfig struct {
	Adapter     string  `yaml:"adapter"`
	Device      string  `yaml:"device"`
	Address     uint8   `yaml:"address"`
	Chip        string  `yaml:"chip"`
	Gain        string  `yaml:"gain"`
	Calibration float64 `yaml:"calibration"`
	BurdenOhms  float64 `yaml:"burden_ohms"`
}

func defaultConfig() fileConfig {
	return fileConfig{
		Adapter:     "mcp2221",
		Device:      "/dev/i2c-1",
		Address:     0x48,
		Chip:        "ads1115",
		Gain:        "2",
		Calibration: 1.0,
	}
}

func loadConfig(path string) (fileConfig, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return config, fmt.Errorf("could not parse config file: %w", err)
	}
	return config, nil
}

func saveConfig(path string, config fileConfig) error {
	raw, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("could not serialize config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}
	return nil
}
