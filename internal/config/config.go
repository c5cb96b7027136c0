// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "time"

// Config is the resolved host configuration.
type Config struct {
	LogLevel  string
	LogFormat string // console, json, or empty to pick by terminal

	// Transport listen addresses. An empty address disables the transport.
	StreamAddr   string
	HTTPAddr     string
	GRPCAddr     string
	SocketIOAddr string

	HTTPHelper         bool
	HTTPHelperName     string
	HTTPTimeoutSeconds int

	Metrics bool
}

// fileConfig is the on-disk shape. Pointer fields distinguish "unset" from
// false so Merge only overrides what the file names.
type fileConfig struct {
	LogLevel           string `yaml:"log_level" toml:"log_level" hcl:"log_level,optional"`
	LogFormat          string `yaml:"log_format" toml:"log_format" hcl:"log_format,optional"`
	StreamAddr         string `yaml:"stream_addr" toml:"stream_addr" hcl:"stream_addr,optional"`
	HTTPAddr           string `yaml:"http_addr" toml:"http_addr" hcl:"http_addr,optional"`
	GRPCAddr           string `yaml:"grpc_addr" toml:"grpc_addr" hcl:"grpc_addr,optional"`
	SocketIOAddr       string `yaml:"socketio_addr" toml:"socketio_addr" hcl:"socketio_addr,optional"`
	HTTPHelper         *bool  `yaml:"http_helper" toml:"http_helper" hcl:"http_helper,optional"`
	HTTPHelperName     string `yaml:"http_helper_name" toml:"http_helper_name" hcl:"http_helper_name,optional"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds" toml:"http_timeout_seconds" hcl:"http_timeout_seconds,optional"`
	Metrics            *bool  `yaml:"metrics" toml:"metrics" hcl:"metrics,optional"`
}

const (
	defaultStreamAddr     = "127.0.0.1:7420"
	defaultHTTPHelperName = "http"
	defaultHTTPTimeout    = 30
)

// Default returns the built-in configuration: stream transport on loopback,
// HTTP helper enabled, metrics off.
func Default() Config {
	return Config{
		LogLevel:           "info",
		StreamAddr:         defaultStreamAddr,
		HTTPHelper:         true,
		HTTPHelperName:     defaultHTTPHelperName,
		HTTPTimeoutSeconds: defaultHTTPTimeout,
	}
}

// HTTPTimeout is the per-request timeout of the HTTP helper.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Transports returns the enabled transports keyed by name.
func (c *Config) Transports() map[string]string {
	out := make(map[string]string, 4)
	for name, addr := range map[string]string{
		"stream":   c.StreamAddr,
		"http":     c.HTTPAddr,
		"grpc":     c.GRPCAddr,
		"socketio": c.SocketIOAddr,
	} {
		if addr != "" {
			out[name] = addr
		}
	}
	return out
}
