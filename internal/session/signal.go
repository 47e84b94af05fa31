package session

import (
	"context"
	"os"
)

// WatchSignals turns interrupts into session actions. The first signal asks
// the run loop to stop; it will save on its way out. A second signal forces
// one snapshot save and exits with code 130. It returns when ctx is done.
func WatchSignals(ctx context.Context, s *Session, sigs <-chan os.Signal, exit func(code int)) {
	count := 0
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			count++
			if count == 1 {
				logger.Printf("Received %v, stopping after the current item (repeat to force exit)", sig)
				s.Stop()
				continue
			}
			logger.Printf("Received %v again, saving snapshot and exiting", sig)
			s.Stop()
			s.Flush()
			exit(130)
			return
		}
	}
}
