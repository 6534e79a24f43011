package shared

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"
)

// SetupSignalHandling wires interrupt signals to server shutdown. The
// first signal calls graceful; a second signal exits immediately with
// the conventional 128+signal code.
func SetupSignalHandling(graceful func()) {
	sigCh := make(chan os.Signal, 2)

	// always handle Interrupt (portable)
	sigs := []os.Signal{os.Interrupt}

	// add Unix-only signals
	if runtime.GOOS != "windows" {
		sigs = append(sigs, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
		// SIGPIPE should generally be ignored to avoid process termination on broken pipes
		signal.Ignore(syscall.SIGPIPE)
	}

	signal.Notify(sigCh, sigs...)

	go func() {
		// first signal: request graceful shutdown
		s := <-sigCh
		graceful()

		// second signal: force immediate exit
		<-sigCh
		if ss, ok := s.(syscall.Signal); ok {
			os.Exit(128 + int(ss))
		}
		os.Exit(1)
	}()
}
