// Package config loads the isoflux runtime configuration.
//
// Configuration is resolved in layers, higher layers overriding lower:
//
//  1. Built-in defaults (Default)
//  2. A YAML file
//  3. Environment variables (ISOFLUX_*)
//
// A configuration file looks like:
//
//	log:
//	  level: debug
//	snapshot:
//	  dir: ./snapshots
//	dispatcher:
//	  recover_panics: true
//	  metrics: false
//	lua:
//	  timeout: 2s
//	plugins:
//	  - kind: dimensions
//	    dimensions:
//	      locale: en-US
//	  - kind: lua
//	    path: plugins/greeter.lua
//	  - kind: tracing
//
// Relative plugin paths are resolved against the directory of the file.
package config
