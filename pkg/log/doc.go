// Package log is a small wrapper around the standard library logger used by
// every indexify package.
//
// Loggers are named per component and memoized:
//
//	l := log.ForService("suggest")
//	l.Infof("fetched %d suggestions", n)
//	l.Debugf("raw body: %s", body) // only with --debug or EnableDebugFor("suggest")
//
// Each line carries the level and a "[name>]" prefix:
//
//	2026/01/02 15:04:05.000000 WARN [suggest>] fetching suggestions for "mac": connection refused
//
// Debug output can be enabled globally (SetGlobalDebug, wired to the --debug
// flag) or for a single component (EnableDebugFor). SetOutput swaps the
// destination of all loggers at once; the interactive shell points it at a
// file in the storage directory.
//
// The package name collides with the standard library "log". Alias one of
// them when both are needed:
//
//	import (
//		stdlog "log"
//
//		"github.com/rubiojr/indexify/pkg/log"
//	)
package log
