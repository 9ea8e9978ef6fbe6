// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package config loads the monitor configuration from an optional YAML file
// overlaid with environment variables, and applies defaults and validation.
package config
