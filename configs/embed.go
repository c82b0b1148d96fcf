// Package configs holds the YAML templates that `pretext init` and
// `pretext config init` write for new setups. The files are embedded
// so every install (go install, release binaries, Homebrew) ships
// them without needing a data directory on disk.
//
// Settings layer in the order internal/config.Load applies them,
// later wins:
//
//	built-in defaults -> user config -> .pretext.yaml -> PRETEXT_* env
//
// Edit the .yaml files here and rebuild to change what init writes.
package configs

import _ "embed"

// UserConfigTemplate seeds ~/.config/pretext/config.yaml: machine
// settings such as worker count, cache size, and log level that apply
// to every project on the host.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate seeds .pretext.yaml in a project root. Most
// keys ship commented out so the built-in defaults stay in effect;
// dataset.path is the one field every project must set.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
