//go:build unix

package cli

import (
	"os"
	"os/signal"
	"syscall"
)

// manualTriggers turns SIGUSR1 into tick requests.
func manualTriggers() (<-chan struct{}, func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)

	out := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-sigs:
				select {
				case out <- struct{}{}:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	return out, func() {
		signal.Stop(sigs)
		close(done)
	}
}
