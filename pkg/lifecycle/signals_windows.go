//go:build windows

package lifecycle

import "context"

// Target receives suspend and resume notifications.
type Target interface {
	OnSuspend()
	OnResume()
}

// BindSignals does nothing on Windows, which has no SIGUSR1/SIGUSR2.
func BindSignals(ctx context.Context, target Target) {}
