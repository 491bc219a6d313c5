package signal

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

func waitShutdown(t *testing.T, c *Interceptor) {
	t.Helper()

	select {
	case <-c.ShutdownChannel():
	case <-time.After(testTimeout):
		t.Fatal("shutdown channel not closed")
	}
}

// TestRequestShutdown checks that a shutdown request closes the shutdown
// channel and that later requests do not block.
func TestRequestShutdown(t *testing.T) {
	t.Parallel()

	c := newInterceptor()
	go c.mainInterruptHandler()

	require.True(t, c.Alive())

	c.RequestShutdown()
	waitShutdown(t, &c)
	require.False(t, c.Alive())

	c.RequestShutdown()
}

// TestInterruptSignal checks that a received signal triggers shutdown.
func TestInterruptSignal(t *testing.T) {
	t.Parallel()

	c := newInterceptor()
	go c.mainInterruptHandler()

	c.interruptChannel <- syscall.SIGTERM
	waitShutdown(t, &c)
}

// TestInterceptOnce checks that Intercept refuses a second call.
func TestInterceptOnce(t *testing.T) {
	c, err := Intercept()
	require.NoError(t, err)

	_, err = Intercept()
	require.ErrorIs(t, err, ErrAlreadyIntercepting)

	c.RequestShutdown()
	waitShutdown(t, &c)
}
