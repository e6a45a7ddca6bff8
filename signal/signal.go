// Package signal owns delivery of process interrupt signals and turns
// them into a single shutdown decision the rest of the daemon can block
// on.
package signal

import (
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// started tracks whether an interceptor has already been spawned. Only
// one may exist per process since it takes over signal delivery.
var started int32

// Interceptor carries the channels through which a shutdown is
// observed. The decision is made exactly once, whether it came from a
// caught signal or an internal request, and fans out to everything
// blocked on ShutdownChannel.
type Interceptor struct {
	// interruptChannel receives the caught process signals.
	interruptChannel chan os.Signal

	// shutdownChannel is closed once the interrupt handler exits.
	shutdownChannel chan struct{}

	// shutdownRequestChannel requests a graceful shutdown from within
	// the process, with the same effect as a caught signal.
	shutdownRequestChannel chan struct{}

	// quit is closed once the shutdown decision has been made, after
	// which further requests are ignored.
	quit chan struct{}
}

// Intercept registers for the interrupt signals a daemon is expected to
// honor and starts the handler goroutine. It fails if an interceptor is
// already running in this process.
func Intercept() (Interceptor, error) {
	if !atomic.CompareAndSwapInt32(&started, 0, 1) {
		return Interceptor{}, errors.New(
			"intercept already started",
		)
	}

	channels := Interceptor{
		interruptChannel:       make(chan os.Signal, 1),
		shutdownChannel:        make(chan struct{}),
		shutdownRequestChannel: make(chan struct{}),
		quit:                   make(chan struct{}),
	}

	signalsToCatch := []os.Signal{
		os.Interrupt,
		os.Kill,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	}
	signal.Notify(channels.interruptChannel, signalsToCatch...)
	go channels.mainInterruptHandler()

	return channels, nil
}

// mainInterruptHandler listens for signals on the interrupt channel and
// shutdown requests on the request channel, makes the shutdown decision
// once and then signals the shutdown channel. It must be run as a
// goroutine.
func (c Interceptor) mainInterruptHandler() {
	// isShutdown is flipped once the decision has been made, so that
	// repeated signals only log.
	var isShutdown bool

	// shutdown signals the handler to exit and stops accepting
	// post-facto requests.
	shutdown := func() {
		if isShutdown {
			log.Infof("Already shutting down...")
			return
		}
		isShutdown = true
		log.Infof("Shutting down...")

		close(c.quit)
	}

	for {
		select {
		case signal := <-c.interruptChannel:
			log.Infof("Received %v", signal)
			shutdown()

		case <-c.shutdownRequestChannel:
			log.Infof("Received shutdown request.")
			shutdown()

		case <-c.quit:
			log.Infof("Gracefully shutting down.")
			close(c.shutdownChannel)
			signal.Stop(c.interruptChannel)
			return
		}
	}
}

// Alive returns true if the main interrupt handler has not been killed.
func (c Interceptor) Alive() bool {
	select {
	case <-c.quit:
		return false
	default:
		return true
	}
}

// RequestShutdown initiates a graceful shutdown from the application.
func (c Interceptor) RequestShutdown() {
	select {
	case c.shutdownRequestChannel <- struct{}{}:
	case <-c.quit:
	}
}

// ShutdownChannel returns the channel that will be closed once the main
// interrupt handler has exited.
func (c Interceptor) ShutdownChannel() <-chan struct{} {
	return c.shutdownChannel
}
