// Package otel bridges authmint metric snapshots into an OpenTelemetry
// meter using observable instruments, so an existing OTel pipeline can
// scrape the engine without a second metrics system.
package otel
