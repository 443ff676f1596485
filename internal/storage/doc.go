// Package storage persists the recent files history and the post log.
//
// It supports:
//   - Recent files history (flat text file, or a sqlite table)
//   - Post log appends (one record per published post)
package storage
