package follower

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pstesting "github.com/syntrixbase/metasync/internal/core/pubsub/testing"
)

func TestRefreshSignalTestAndClearConsumesOnce(t *testing.T) {
	r := NewRefreshSignal("metasync.fullupdate.hms", nil)

	assert.False(t, r.TestAndClear())

	r.Set()
	assert.True(t, r.TestAndClear())
	assert.False(t, r.TestAndClear())
}

func TestRefreshSignalSetIsIdempotent(t *testing.T) {
	r := NewRefreshSignal("metasync.fullupdate.hms", nil)

	r.Set()
	r.Set()
	assert.True(t, r.TestAndClear())
	assert.False(t, r.TestAndClear())
}

func TestRefreshSignalPanicsOnWrongSubject(t *testing.T) {
	r := NewRefreshSignal("metasync.fullupdate.hms", nil)

	assert.Panics(t, func() {
		r.OnMessage("metasync.fullupdate.other", nil)
	})
}

func TestRefreshSignalRunConsumesMessages(t *testing.T) {
	r := NewRefreshSignal("metasync.fullupdate.hms", nil)
	consumer := pstesting.NewMockConsumer(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, consumer)
	}()

	msg := consumer.Deliver("metasync.fullupdate.hms", []byte("req-1"))

	require.Eventually(t, r.TestAndClear, time.Second, 10*time.Millisecond)
	assert.True(t, msg.Acked())

	consumer.CloseStream()
	require.NoError(t, <-done)
}
