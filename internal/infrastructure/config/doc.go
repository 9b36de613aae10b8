// Package config loads and validates DoseBox Core configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// DOSEBOX_* environment variable overrides. Secrets (the MQTT password,
// the InfluxDB token) are expected to arrive via the environment rather
// than the YAML file.
package config
