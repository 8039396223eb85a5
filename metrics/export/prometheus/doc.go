// Package prometheus renders authmint metric snapshots in the Prometheus
// text exposition format without importing the Prometheus client library.
package prometheus
