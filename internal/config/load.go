// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pelletier/go-toml/v2"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PHOSPHOR_"

// Load reads path (optional), applies environment overrides and validates the
// result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		parsed, err := decode(path, data)
		if err != nil {
			return nil, err
		}
		Merge(&cfg, parsed)
	}
	if err := ApplyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(path string, data []byte) (fileConfig, error) {
	var parsed fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&parsed); err != nil && !errors.Is(err, io.EOF) {
			return fileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&parsed); err != nil {
			return fileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".hcl":
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCL(data, path)
		if diags.HasErrors() {
			return fileConfig{}, fmt.Errorf("parse config %s: %s", path, diags.Error())
		}
		diags = gohcl.DecodeBody(file.Body, envEvalContext(), &parsed)
		if diags.HasErrors() {
			return fileConfig{}, fmt.Errorf("decode config %s: %s", path, diags.Error())
		}
	default:
		return fileConfig{}, fmt.Errorf("config %s: unsupported extension %q", path, ext)
	}
	return parsed, nil
}

// envEvalContext exposes the process environment to HCL as env.NAME.
func envEvalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !validIdentifier(name) {
			continue
		}
		vars[name] = cty.StringVal(value)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vars)},
	}
}

func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return true
}

// Merge copies the values set in src over dst.
func Merge(dst *Config, src fileConfig) {
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFormat != "" {
		dst.LogFormat = src.LogFormat
	}
	if src.StreamAddr != "" {
		dst.StreamAddr = src.StreamAddr
	}
	if src.HTTPAddr != "" {
		dst.HTTPAddr = src.HTTPAddr
	}
	if src.GRPCAddr != "" {
		dst.GRPCAddr = src.GRPCAddr
	}
	if src.SocketIOAddr != "" {
		dst.SocketIOAddr = src.SocketIOAddr
	}
	if src.HTTPHelper != nil {
		dst.HTTPHelper = *src.HTTPHelper
	}
	if src.HTTPHelperName != "" {
		dst.HTTPHelperName = src.HTTPHelperName
	}
	if src.HTTPTimeoutSeconds != 0 {
		dst.HTTPTimeoutSeconds = src.HTTPTimeoutSeconds
	}
	if src.Metrics != nil {
		dst.Metrics = *src.Metrics
	}
}

// ApplyEnvOverrides applies PHOSPHOR_* variables. The value "off" disables a
// transport address.
func ApplyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"LOG_LEVEL":        &cfg.LogLevel,
		"LOG_FORMAT":       &cfg.LogFormat,
		"STREAM_ADDR":      &cfg.StreamAddr,
		"HTTP_ADDR":        &cfg.HTTPAddr,
		"GRPC_ADDR":        &cfg.GRPCAddr,
		"SOCKETIO_ADDR":    &cfg.SocketIOAddr,
		"HTTP_HELPER_NAME": &cfg.HTTPHelperName,
	}
	for key, dst := range strs {
		if v, ok := lookupEnv(key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"HTTP_HELPER": &cfg.HTTPHelper,
		"METRICS":     &cfg.Metrics,
	}
	for key, dst := range bools {
		v, ok := lookupEnv(key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
	}

	if v, ok := lookupEnv("HTTP_TIMEOUT_SECONDS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sHTTP_TIMEOUT_SECONDS: %w", EnvPrefix, err)
		}
		cfg.HTTPTimeoutSeconds = n
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	return v, v != ""
}
