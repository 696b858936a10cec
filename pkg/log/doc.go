// Package log provides the logging abstraction used by the canmaster packages.
//
// The lifecycle controller, the resource manager and the drivers only
// depend on the Logger interface. A zerolog adapter is provided for hosts
// and a no-op logger for tests.
//
// # Usage
//
//	logger := log.NewZerologAdapter(log.LevelDebug)
//	logger.Info("activated", log.String("iface", "vcan0"), log.Uint8("node_id", 5))
//
// Wrap an existing zerolog.Logger with NewZerologAdapterWithLogger when the
// host already configured one.
package log
