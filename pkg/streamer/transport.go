// Package streamer opens the push connection for one submitted query and
// folds the resulting event stream into the conversation store.
package streamer

import "context"

// OpenRequest carries what a stream-open needs: the user's raw text and the
// conversation's resume token, attached only once the producer issued one.
type OpenRequest struct {
	Message      string
	CheckpointID string
}

// FrameReader yields raw frames from an open push connection, one at a
// time. Next returns io.EOF when the producer closed the stream cleanly.
type FrameReader interface {
	Next() ([]byte, error)
	Close() error
}

// Transport is the push-connection primitive. Implementations own the wire
// details; the controller only sees frames.
type Transport interface {
	Open(ctx context.Context, req OpenRequest) (FrameReader, error)
}
