// Package integration contains integration tests for the SpotifyScope
// backend.
//
// These tests use testcontainers to spin up real dependencies (Redis) and
// exercise the cache store and facade against them. They are skipped in
// short mode.
package integration
