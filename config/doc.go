// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, backend URLs, strategy selection, and health check intervals.
package config
