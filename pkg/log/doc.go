// Package log provides the zerolog-backed global logger and helpers for
// attaching component and entity fields to child loggers.
package log
