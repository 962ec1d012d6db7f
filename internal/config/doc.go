// Package config provides configuration loading and validation for the voice
// activity detector. It handles YAML-based configuration with per-section
// validation and documented defaults for every analysis parameter.
package config
