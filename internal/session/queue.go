package session

// outboundQueue buffers fully serialized frames while no connection is open.
// Strict FIFO: frames leave in the order they were enqueued, and a frame is
// only ever dropped by an explicit clear.
type outboundQueue struct {
	frames [][]byte
}

func (q *outboundQueue) enqueue(frame []byte) {
	q.frames = append(q.frames, frame)
}

func (q *outboundQueue) len() int {
	return len(q.frames)
}

func (q *outboundQueue) clear() {
	q.frames = nil
}

// drain hands the current contents to send, one frame at a time. The snapshot
// is taken up front: frames enqueued while send is running wait for the next
// drain. If send fails, the unsent remainder is restored at the head, ahead
// of anything enqueued in the meantime, so order survives a broken flush.
func (q *outboundQueue) drain(send func(frame []byte) error) error {
	pending := q.frames
	q.frames = nil

	for i, frame := range pending {
		if err := send(frame); err != nil {
			q.frames = append(pending[i:], q.frames...)
			return err
		}
	}
	return nil
}
