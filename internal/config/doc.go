// Package config loads and validates the dictation pipeline configuration.
package config
