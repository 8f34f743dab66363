// Package config loads outbox settings from a TOML file.
//
// The default location is ~/.config/outbox/config.toml. A missing file is
// not an error: every setting has a default. Unknown keys and malformed
// durations are rejected so that a typo does not silently fall back to a
// default.
//
//	server_url         = "http://127.0.0.1:8080"
//	database           = "~/.local/share/outbox/outbox.db"
//	probe_interval     = "5s"
//	reconcile_interval = "30s"
//	invoke_timeout     = "30s"
//	result_window      = "5s"
//	metrics_addr       = ""    # e.g. "127.0.0.1:9464"; empty disables
//	catalog            = ""    # path to a CUE command catalog; empty disables
//	log_level          = "info"
package config
