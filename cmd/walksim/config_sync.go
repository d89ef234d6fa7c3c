package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"tilewalker/internal/config"
)

const (
	configJSONEnv    = "TILEWALKER_CONFIG_JSON"
	configYAMLB64Env = "TILEWALKER_CONFIG_YAML_B64"
)

// configFromEnv decodes a configuration handed over through the environment,
// layered over the defaults. It reports false when neither variable is set.
func configFromEnv() (*config.Config, bool, error) {
	jsonPayload := os.Getenv(configJSONEnv)
	yamlPayload := os.Getenv(configYAMLB64Env)
	if jsonPayload == "" && yamlPayload == "" {
		return nil, false, nil
	}

	cfg := config.Default()
	if jsonPayload != "" {
		if err := json.Unmarshal([]byte(jsonPayload), cfg); err != nil {
			return nil, false, fmt.Errorf("decode config json: %w", err)
		}
	} else {
		data, err := base64.StdEncoding.DecodeString(yamlPayload)
		if err != nil {
			return nil, false, fmt.Errorf("decode config yaml: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, false, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, false, fmt.Errorf("validate config: %w", err)
	}
	return cfg, true, nil
}

// writeConfig persists cfg as JSON so later runs can reuse it with -config.
func writeConfig(path string, cfg *config.Config) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config json: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// loadConfig prefers an environment payload and saves it to path when one is
// given. Otherwise path is loaded as usual.
func loadConfig(path string) (*config.Config, error) {
	cfg, ok, err := configFromEnv()
	if err != nil {
		return nil, err
	}
	if !ok {
		return config.Load(path)
	}
	if path != "" {
		if err := writeConfig(path, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
