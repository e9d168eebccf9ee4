// Package config loads and merges halidom configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (HALIDOM_ENGINE_COMMAND, HALIDOM_FORMAT, etc.)
//  3. Project file (<repo>/.halidom.toml)
//  4. User config file ($XDG_CONFIG_HOME/halidom/config.json)
//  5. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Save] to write the user config
// file, [SaveProject] to write a project file, and [SetField] to update a
// single key.
package config
