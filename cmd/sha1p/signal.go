package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// setupSignalHandler returns a channel closed on SIGINT or SIGTERM.
// A second signal is left to the default handler.
func setupSignalHandler() <-chan struct{} {
	shutdown := make(chan struct{})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nReceived signal: %v\n", sig)
		close(shutdown)
		signal.Stop(sigChan)
		fmt.Fprintf(os.Stderr, "Finishing in-flight files and flushing...\n")
	}()

	return shutdown
}
