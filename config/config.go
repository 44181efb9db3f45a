//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads the service configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variable overrides. Each one, when set, wins over the file.
const (
	envListenAddr = "DEEPRESEARCH_LISTEN_ADDR"
	envDataDir    = "DEEPRESEARCH_DATA_DIR"
	envSQLitePath = "DEEPRESEARCH_SQLITE_PATH"
	envModelName  = "DEEPRESEARCH_MODEL_NAME"
	envBaseURL    = "DEEPRESEARCH_MODEL_BASE_URL"
	envAPIKey     = "DEEPRESEARCH_MODEL_API_KEY"
	envLogLevel   = "DEEPRESEARCH_LOG_LEVEL"
	envMaxHops    = "DEEPRESEARCH_MAX_HOPS"
)

// Config is the service configuration.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`

	// DataDir is the root directory for per-session artifacts.
	DataDir string `yaml:"data_dir"`

	// SQLitePath is the checkpoint and summary database file.
	SQLitePath string `yaml:"sqlite_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// MaxHops bounds supervisor transitions per workflow run. Zero keeps the
	// engine default.
	MaxHops int `yaml:"max_hops"`

	// UploadWorkers sizes the upload ingestion pool. Zero keeps the server
	// default.
	UploadWorkers int `yaml:"upload_workers"`

	Model ModelConfig `yaml:"model"`
}

// ModelConfig configures the language model client.
type ModelConfig struct {
	// Name is the model identifier sent with every request.
	Name string `yaml:"name"`

	// BaseURL overrides the API endpoint, e.g. for a proxy or a compatible
	// local server. Empty uses the provider default.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates the client. Usually set via environment.
	APIKey string `yaml:"api_key"`
}

// Default returns a runnable local configuration.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		DataDir:    "./data",
		SQLitePath: "./data/deepresearch.db",
		LogLevel:   "info",
		Model: ModelConfig{
			Name: "gpt-4o-mini",
		},
	}
}

// Load reads the configuration: defaults, then the YAML file at path if it is
// non-empty, then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.ListenAddr, envListenAddr)
	setString(&c.DataDir, envDataDir)
	setString(&c.SQLitePath, envSQLitePath)
	setString(&c.LogLevel, envLogLevel)
	setString(&c.Model.Name, envModelName)
	setString(&c.Model.BaseURL, envBaseURL)
	setString(&c.Model.APIKey, envAPIKey)
	if raw, ok := os.LookupEnv(envMaxHops); ok {
		hops, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envMaxHops, err)
		}
		c.MaxHops = hops
	}
	return nil
}

func setString(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok {
		*target = value
	}
}
