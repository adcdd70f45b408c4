// Package config parses process configuration from the environment
// (SPEC_FULL.md §8's DM_-prefixed variables), following the teacher's
// internal/options env-or-default/ValidationError idiom, and hot-reloads
// schema and authz documents via fsnotify when they change on disk.
package config
