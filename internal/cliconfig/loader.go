package cliconfig

import "fmt"

// Loader resolves the effective configuration from a base (defaults plus
// command-line flags), the config file and the environment. Every Load
// starts again from Base, so keys removed from the file fall back to it.
type Loader struct {
	Base    Config
	Path    string
	Changed map[string]bool
}

// Load returns a validated configuration. Env overrides the file and
// changed flags override both.
func (l *Loader) Load() (Config, error) {
	cfg := l.Base
	if l.Path != "" && FileExists(l.Path) {
		fc, err := LoadFileConfig(l.Path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFileConfig(&cfg, fc, l.Changed); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnvConfig(&cfg, l.Changed); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
