// Package janitor runs periodic maintenance sweeps in the background.
package janitor

import "time"

// Janitor calls a sweep function on a ticker until stopped.
type Janitor struct {
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// Start launches a goroutine calling sweep every interval.
func Start(interval time.Duration, sweep func()) *Janitor {
	j := &Janitor{
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(j.stoppedCh)

		for {
			select {
			case <-ticker.C:
				sweep()
			case <-j.stopCh:
				return
			}
		}
	}()

	return j
}

// Stop halts the sweep loop and waits for it to exit. It is a no-op on a
// nil Janitor and must be called at most once per Janitor.
func (j *Janitor) Stop() {
	if j == nil {
		return
	}
	close(j.stopCh)
	<-j.stoppedCh
}
