// Package discovery populates a hook registry from declarative handler
// definitions.
//
// Candidates come from two places:
//
//   - a Catalog of Go values that implement Handler
//   - directories containing descriptor files (*.hook.toml, *.hook.yaml,
//     *.hook.yml, *.hook.json) and Lua scripts (*.lua)
//
// For every candidate a Descriptor is extracted. Structured metadata is
// tried first (a Describer implementation, a `hook:"..."` tag on a Meta
// field, the descriptor file itself, or a Lua `hook = {...}` table). When
// there is none, a legacy comment block with @hook style annotations is
// parsed. When that is absent too, the name is derived from the
// definition's identifier: UserCreatedHook becomes user.created.
//
// Disabled descriptors are skipped. A candidate that fails for any reason
// is recorded in the Report and the scan continues.
package discovery
