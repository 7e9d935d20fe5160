// Package config provides configuration structures and utilities for socialmark.
// It defines where share events are received, where annotations are stored,
// how the share pipeline runs and how reports are written.
//
// Values are layered: NewConfig defaults, then the YAML file (.socialmark),
// then .env and SOCIALMARK_* environment variables, then CLI flags.
package config
