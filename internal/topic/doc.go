// Package topic implements dotted hook names and wildcard patterns.
//
// Hook names are opaque strings, but names made of dot-separated segments
// can be addressed with patterns:
//
//   - "*" matches exactly one segment
//   - "**" matches zero or more segments
//
// For example "view.before_render.*" matches "view.before_render.home" but
// not "view.before_render.admin.users", while "view.**" matches both.
//
// The Matcher type stores a set of patterns in a segment trie so that all
// patterns matching a concrete name can be found without scanning every
// registered pattern.
package topic
