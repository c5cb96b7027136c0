// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the phosphor host configuration.
//
// A file is optional. Its format follows the extension: .yaml or .yml, .toml,
// or .hcl. HCL files may reference environment variables as env.NAME. Values
// from the file are merged over Default, then PHOSPHOR_* environment
// variables win, then the result is normalized and validated.
package config
