// Package orchestrator runs one posting tick at a time.
//
// A tick moves through Idle -> Queued -> Delaying -> Publishing and ends either
// Recorded (history pushed and saved, post logged) or Deferred (nothing recorded,
// the image becomes eligible again on the next refill).
package orchestrator
