// Package config loads hookwire configuration.
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Environment Variables   │  ← HOOKWIRE_*, highest priority
//	├─────────────────────────────┤
//	│  3. .env File               │
//	├─────────────────────────────┤
//	│  2. Config File             │  ← hookwire.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Layers are deep-merged as maps and the result is decoded into Config.
// The [values] table is free-form and feeds config conditions.
//
// # Sub-packages
//
//   - loader: TOML, .env and environment variable sources
package config
