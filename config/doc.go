// Package config handles application configuration loading and validation.
//
// Configuration is loaded from a YAML file and validated using struct tags.
// Missing values fall back to the defaults of each section.
package config
