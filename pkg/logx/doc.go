// Package logx is a thin structured logging layer over zerolog.
//
// Components receive a Logger by value and derive their own with With
// (conventionally comp=<name>). Loggers created from a Service follow its
// current configuration, so Apply takes effect everywhere at once.
//
// Sinks: human-readable console, JSON lines in a file, and an optional alert
// sink that forwards records at or above a level to a Sender (rate limited).
package logx
