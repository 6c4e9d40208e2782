// Package config loads, normalizes, and validates Content Factory
// configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for the
// external service credentials (OPENROUTER_API_KEY, WORDPRESS_APP_PASSWORD,
// SLACK_BOT_TOKEN, ELEVENLABS_API_KEY, KIE_API_KEY). The Config type
// centralizes every knob the daemon and CLI need: storage paths, adapter
// endpoints, run-engine limits, and the weekly trigger schedule.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
