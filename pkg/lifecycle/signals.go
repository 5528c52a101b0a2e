//go:build !windows

package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Target receives suspend and resume notifications.
type Target interface {
	OnSuspend()
	OnResume()
}

// BindSignals maps SIGUSR1 to OnSuspend and SIGUSR2 to OnResume until ctx is
// done. A system sleep hook can send these around a suspend.
func BindSignals(ctx context.Context, target Target) {
	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case sig := <-sigs:
				switch sig {
				case syscall.SIGUSR1:
					target.OnSuspend()
				case syscall.SIGUSR2:
					target.OnResume()
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
