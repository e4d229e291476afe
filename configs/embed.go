// Package configs provides the embedded configuration template for reqlens.
//
// The template is embedded at build time with go:embed so `reqlens config
// init` can write a fully commented starting point regardless of how the
// binary was installed. The authoritative defaults live in
// internal/config; this file is documentation the user can edit.
package configs

import _ "embed"

// ProjectConfigTemplate is the commented .reqlens.yaml starting point
// written by `reqlens config init`.
//
//go:embed reqlens.example.yaml
var ProjectConfigTemplate string
