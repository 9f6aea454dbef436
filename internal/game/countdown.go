package game

import (
	"sync"
	"time"
)

// Countdown calls a function once per tick until it is stopped or the
// function asks to stop. Stop never waits for a running callback, so it is
// safe to call from inside one; Session.Tick rejects ticks that arrive for
// a round that is no longer current.
type Countdown struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartCountdown ticks every interval
func StartCountdown(interval time.Duration, onTick func() bool) *Countdown {
	ticker := time.NewTicker(interval)
	return runCountdown(ticker.C, ticker.Stop, onTick)
}

func runCountdown(ticks <-chan time.Time, release func(), onTick func() bool) *Countdown {
	c := &Countdown{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(c.done)
		if release != nil {
			defer release()
		}
		for {
			select {
			case <-c.stop:
				return
			case <-ticks:
				// a stop that raced the tick wins
				select {
				case <-c.stop:
					return
				default:
				}
				if !onTick() {
					return
				}
			}
		}
	}()

	return c
}

// Stop cancels future ticks. It is idempotent.
func (c *Countdown) Stop() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.stop) })
}

// Done is closed once the countdown goroutine has exited
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}
