// Package internaldefs holds the shared metric name and bucket tables used
// by the prometheus and otel exporters. It exists so both exporters render
// the same metric names from one definition.
package internaldefs
