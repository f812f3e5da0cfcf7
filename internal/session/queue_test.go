package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	var q outboundQueue
	q.enqueue([]byte("A"))
	q.enqueue([]byte("B"))
	q.enqueue([]byte("C"))

	var sent []string
	err := q.drain(func(frame []byte) error {
		sent = append(sent, string(frame))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, sent)
	assert.Equal(t, 0, q.len())
}

func TestQueueSnapshotDrain(t *testing.T) {
	var q outboundQueue
	q.enqueue([]byte("A"))
	q.enqueue([]byte("B"))

	// Frames enqueued while draining wait for the next flush.
	var sent []string
	err := q.drain(func(frame []byte) error {
		sent = append(sent, string(frame))
		if string(frame) == "A" {
			q.enqueue([]byte("C"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, sent)
	assert.Equal(t, 1, q.len())

	sent = nil
	require.NoError(t, q.drain(func(frame []byte) error {
		sent = append(sent, string(frame))
		return nil
	}))
	assert.Equal(t, []string{"C"}, sent)
}

func TestQueueDrainFailureRestoresHead(t *testing.T) {
	var q outboundQueue
	q.enqueue([]byte("A"))
	q.enqueue([]byte("B"))
	q.enqueue([]byte("C"))

	boom := errors.New("socket gone")
	var sent []string
	err := q.drain(func(frame []byte) error {
		if string(frame) == "B" {
			return boom
		}
		sent = append(sent, string(frame))
		return nil
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"A"}, sent)

	// The unsent remainder survives in order.
	sent = nil
	require.NoError(t, q.drain(func(frame []byte) error {
		sent = append(sent, string(frame))
		return nil
	}))
	assert.Equal(t, []string{"B", "C"}, sent)
}

func TestQueueClear(t *testing.T) {
	var q outboundQueue
	q.enqueue([]byte("A"))
	q.clear()
	assert.Equal(t, 0, q.len())
}
