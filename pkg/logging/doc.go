// Package logging installs the slog logger lain writes its diagnostics with.
//
// Everything lain reports besides command output goes through slog to
// stderr, so stdout stays clean for values, manifests and tables that users
// pipe elsewhere.
//
// # Levels
//
// The level comes from --log-level, then LOG_LEVEL, then defaults to info.
// --debug forces debug, which also adds the source location to every
// record. ParseLogLevel accepts debug, info, warn (or warning) and error in
// any case.
//
// # Formats
//
// FormatText is meant for terminals:
//
//	time=2025-01-15T10:30:00.123Z level=WARN msg="no cluster selected, run lain use <cluster> first" module=lain version=v1.0.0
//
// FormatJSON suits CI logs and helm test pods:
//
//	{"time":"2025-01-15T10:30:00.123Z","level":"INFO","msg":"pods ready","module":"lain","version":"v1.0.0","count":2}
//
// # Usage
//
// The command line sets the default once, in its Before hook:
//
//	logging.SetDefault(logging.Options{
//	    Module:  "lain",
//	    Version: version,
//	    Level:   cmd.String("log-level"),
//	    Format:  logging.Format(cmd.String("log-format")),
//	})
//
// Packages then log through slog directly:
//
//	slog.Warn("internal values missing", "cluster", name)
package logging
