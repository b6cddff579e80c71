package ws

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// A broadcast fan-out goroutine racing a disconnect must never send on
// the closed channel; Enqueue either delivers before close or reports
// false after, and the process survives either way.
func TestEnqueueDuringCloseNeverPanics(t *testing.T) {
	for i := 0; i < 200; i++ {
		c := newClient("c1", "u1", nil)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < 50; j++ {
					c.Enqueue(Envelope{Type: EvMessageNew})
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			c.close()
		}()

		close(start)
		wg.Wait()

		assert.False(t, c.Enqueue(Envelope{Type: EvMessageNew}))
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := newClient("c1", "u1", nil)
	c.close()
	c.close()
	assert.False(t, c.Enqueue(Envelope{Type: EvMessageNew}))
}
