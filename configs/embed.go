// Package configs provides data assets embedded at build time.
//
// Assets are embedded with go:embed so they ship identically in source
// builds and binary releases:
//   - expansion-result.schema.json: the versioned JSON Schema every producer
//     of query-expansion output is validated against (internal/expand)
//   - default-config.yaml: the template written by `docdex init`
//
// To change an asset, edit the file in this directory and rebuild.
package configs

import _ "embed"

// ExpansionResultSchema is the JSON Schema for query expansion output.
// internal/expand validates every generator result against it before the
// result reaches a caller. Schema changes are versioned through the
// "description" field and reviewed like code.
//
//go:embed expansion-result.schema.json
var ExpansionResultSchema string

// DefaultConfigTemplate is the project configuration template written by
// `docdex init` to .docdex.yaml.
//
//go:embed default-config.yaml
var DefaultConfigTemplate string
