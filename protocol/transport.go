package protocol

import "context"

// Transport abstracts the byte-level channel a protocol Engine is bound to.
// Engine.Connect runs a dedicated goroutine that loops on Recv and hands
// each frame to the engine's dispatcher; Send is called directly by
// whichever goroutine is writing a request, response or notification.
// Implementations must be safe for concurrent Send calls; Recv is only
// ever called from the engine's single read loop.
type Transport interface {
	// Send writes one complete JSON-RPC message.
	Send(ctx context.Context, data []byte) error

	// Recv blocks until a complete JSON-RPC message arrives, the
	// transport closes (returning io.EOF), or ctx is done.
	Recv(ctx context.Context) ([]byte, error)

	// Close releases the transport. Subsequent Send/Recv calls must
	// return an error.
	Close() error
}
