package config

import "sort"

// Presets trade accuracy for speed
var Presets = map[string]func() *Config{
	"default": DefaultConfig,
	"precise": func() *Config {
		cfg := DefaultConfig()
		cfg.VelocityIterations = 20
		cfg.PositionIterations = 8
		cfg.Slop = 0.001
		return cfg
	},
	"fast": func() *Config {
		cfg := DefaultConfig()
		cfg.VelocityIterations = 4
		cfg.PositionIterations = 1
		return cfg
	},
	"no_sleep": func() *Config {
		cfg := DefaultConfig()
		cfg.AllowSleep = false
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, nil when unknown
func GetPreset(name string) *Config {
	preset, ok := Presets[name]
	if !ok {
		return nil
	}
	return preset()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
