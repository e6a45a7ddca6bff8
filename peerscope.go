// Package peerscope wires the peer snapshot feed, the operator
// diversity analysis and the interactive view state into a daemon.
package peerscope

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/mbtcdash/peerscope/asdiv"
	"github.com/mbtcdash/peerscope/feed"
	"github.com/mbtcdash/peerscope/signal"
	"github.com/mbtcdash/peerscope/viewstate"
)

// Main is the true entry point for peerscope. It is required since
// defers created in the top-level scope of a main method aren't
// executed if os.Exit() is called.
func Main(cfg *Config, interceptor signal.Interceptor) error {
	defer func() {
		pscpLog.Info("Shutdown complete")
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Show version at startup.
	pscpLog.Infof("Version: %s commit=%s", Version(), Commit)

	pscpLog.Debugf("Active configuration: %v",
		newLogClosure(func() string {
			return spew.Sdump(cfg)
		}),
	)

	// Select the snapshot source the configuration asked for.
	var source feed.Source
	if cfg.FeedURL != "" {
		source = feed.NewWebSource(cfg.FeedURL)
		pscpLog.Infof("Polling %v every %v", cfg.FeedURL,
			cfg.RefreshInterval)
	} else {
		source = feed.NewFileSource(cfg.FeedFile)
		pscpLog.Infof("Reading %v every %v", cfg.FeedFile,
			cfg.RefreshInterval)
	}

	store := viewstate.NewStore(&viewstate.Config{
		FetchPeers:        source.FetchPeers,
		RefreshTicker:     ticker.New(cfg.RefreshInterval),
		FrameTicker:       ticker.New(cfg.FrameInterval),
		MaxSegments:       cfg.TopProviders,
		ChangeWindow:      cfg.ChangeWindow,
		AnimationDuration: cfg.AnimationDuration,
	})
	if err := store.Start(); err != nil {
		return fmt.Errorf("unable to start view store: %w", err)
	}
	defer func() {
		if err := store.Stop(); err != nil {
			pscpLog.Warnf("View store stop: %v", err)
		}
	}()

	// Follow the store so a headless run still reports diversity
	// drift in its log.
	sub, err := store.Subscribe()
	if err != nil {
		return fmt.Errorf("unable to follow view store: %w", err)
	}
	go logScoreChanges(sub)

	// Wait for an interrupt or an internal shutdown request.
	<-interceptor.ShutdownChannel()

	return nil
}

// logScoreChanges consumes view updates and logs the diversity score
// whenever its rendered form moves. It must be run as a goroutine and
// exits when the subscription is torn down.
func logScoreChanges(sub *viewstate.Subscription) {
	defer sub.Cancel()

	var last string
	for {
		select {
		case update := <-sub.Updates():
			vm, ok := update.(*viewstate.ViewModel)
			if !ok {
				continue
			}

			line := scoreLine(vm)
			if line == last {
				continue
			}
			last = line

			pscpLog.Info(line)

		case <-sub.Quit():
			return
		}
	}
}

// scoreLine renders one view update as a log line.
func scoreLine(vm *viewstate.ViewModel) string {
	line := fmt.Sprintf("AS diversity score unavailable, none of the "+
		"%d peers carry operator data", vm.Totals.Peers)

	vm.Score.WhenSome(func(score asdiv.Score) {
		line = fmt.Sprintf("AS diversity score %v across %d segments",
			score, len(vm.Segments))
	})

	return line
}
