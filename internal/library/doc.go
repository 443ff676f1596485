// Package library selects images to post.
//
// It lists image files in the configured directory, keeps a rotating queue
// of candidates, and refills that queue while skipping recently posted files.
// An optional fsnotify watcher keeps the directory listing cached between
// refills.
package library
