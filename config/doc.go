// Package config loads the asset runtime configuration.
//
// A configuration file is YAML:
//
//	engine_root_folder: ./assets
//	workers: 4
//	log:
//	  mode: development
//	  level: info
//	catalog:
//	  driver: sqlite        # memory, manifest or sqlite
//	  dsn: ./assets/catalog.db
//	  manifest: ./assets/manifest.yaml
//	sources:
//	  - path: ./mods
//	    priority: 0
//	  - path: ./assets
//	    priority: 10
//	scene_extensions: [".scene", ".prefab"]
//	settings:
//	  Locale: en
//
// Environment variables override the file: ASSET_ENGINE_ROOT, ASSET_WORKERS,
// ASSET_LOG_MODE and ASSET_LOG_LEVEL.
//
// A loaded Config is also the read-only settings registry handed to the
// scene cache; Get("EngineRootFolder") returns the resolved root.
package config
