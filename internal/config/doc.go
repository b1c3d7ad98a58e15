// Package config provides configuration structures and utilities for appscout.
// It defines the crawl bounds, browser settings, artifact locations and the
// per-application YAML configuration file.
package config
