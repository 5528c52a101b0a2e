// Package scheduler drives the once-per-second timer tick. A single ticker
// goroutine serves every running timer; the owner turns it on and off with
// Ensure after each state change.
package scheduler
