//go:build !windows
// +build !windows

package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
)

// interrupt returns when the process is asked to stop. SIGUSR1 calls report
// instead.
func interrupt(cancel <-chan struct{}, report func()) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(c)
	for {
		select {
		case sig := <-c:
			if sig == syscall.SIGUSR1 {
				report()
				continue
			}
			return fmt.Errorf("received signal %s", sig)
		case <-cancel:
			return errors.New("canceled")
		}
	}
}
