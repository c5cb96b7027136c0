// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	for _, addr := range []*string{&c.StreamAddr, &c.HTTPAddr, &c.GRPCAddr, &c.SocketIOAddr} {
		*addr = strings.TrimSpace(*addr)
		if strings.EqualFold(*addr, "off") {
			*addr = ""
		}
	}
	c.HTTPHelperName = strings.TrimSpace(c.HTTPHelperName)
	if c.HTTPHelperName == "" {
		c.HTTPHelperName = defaultHTTPHelperName
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: unsupported value %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format: unsupported value %q", c.LogFormat)
	}

	transports := c.Transports()
	if len(transports) == 0 {
		return errors.New("no transport enabled: set at least one of stream_addr, http_addr, grpc_addr, socketio_addr")
	}
	seen := make(map[string]string, len(transports))
	for name, addr := range transports {
		_, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("%s_addr: %w", name, err)
		}
		if port == "0" {
			continue
		}
		// Hosts are ignored: ":8080" and "127.0.0.1:8080" collide at bind time.
		if other, dup := seen[port]; dup {
			return fmt.Errorf("%s_addr and %s_addr both use port %s", name, other, port)
		}
		seen[port] = name
	}

	if c.HTTPTimeoutSeconds <= 0 {
		return errors.New("http_timeout_seconds must be positive")
	}
	return nil
}
