// Package logging provides the hub's structured logger.
//
// It wraps log/slog with the hub's defaults: JSON records stamped with
// the service name and build version, level filtering from config.yaml,
// and a text mode for development.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Consumers log key-value pairs:
//
//	logger.Info("integration started", "integration", "mqtt_bridge")
//	logger.Error("database open failed", "error", err)
//
// Never log credentials or tokens; the broker password in particular
// passes through config and must stay out of the log stream.
package logging
