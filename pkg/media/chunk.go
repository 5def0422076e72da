package media

// DefaultBlockSize is the chunk size used when none is configured.
const DefaultBlockSize = 8192

// ChunkStream splits a byte sequence into fixed-size chunks, emitted in
// order. It is forward-only and finite; re-reading requires a fresh
// stream. Chunks alias the underlying bytes rather than copying them.
type ChunkStream struct {
	data []byte
	size int
}

// NewChunkStream returns a stream over data in chunks of size bytes.
// A size of zero or less falls back to DefaultBlockSize.
func NewChunkStream(data []byte, size int) *ChunkStream {
	if size <= 0 {
		size = DefaultBlockSize
	}
	return &ChunkStream{data: data, size: size}
}

// Next returns the next chunk, or nil once the stream is exhausted.
// The final chunk may be shorter than the configured size.
func (s *ChunkStream) Next() []byte {
	if len(s.data) == 0 {
		return nil
	}
	n := s.size
	if n > len(s.data) {
		n = len(s.data)
	}
	chunk := s.data[:n]
	s.data = s.data[n:]
	return chunk
}
