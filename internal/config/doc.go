// Package config loads cascade configuration from YAML or TOML files.
//
// Values are read over Default(), ${VAR} references are expanded from the
// environment, and the result is validated against an embedded CUE schema:
//
//	store:
//	  path: ${HOME}/data/cascade.sqlite
//	  driver: sqlite3        # or "sqlite" for the pure-Go driver
//	  auto_migrate: true
//	  infer_mapping: true
//	  busy_timeout: 5s
//	session:
//	  path: ""               # defaults to session.json next to the store
//	logging:
//	  level: info            # debug | info | warn | error
//	  format: text           # text | json
package config
