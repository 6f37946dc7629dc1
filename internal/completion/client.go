package completion

import "context"

// Chunk is one incremental unit of a streamed response.
//
// Citations is nil unless the chunk carried a citations attribute; a non-nil
// empty slice still counts as citation-bearing.
type Chunk struct {
	Content   string
	Citations []string
}

// ChunkStream is a sequential iterator over response chunks. Close must be
// called on every exit path.
type ChunkStream interface {
	// Next returns the next chunk, or false when the stream is exhausted or
	// failed. Check Err after a false return.
	Next() (Chunk, bool)

	// Err reports the terminal stream error, nil on clean exhaustion.
	Err() error

	Close() error
}

// Client opens a streaming completion call against a hosted provider.
type Client interface {
	Stream(ctx context.Context, p Params) (ChunkStream, error)
}
