package media

import (
	"bytes"
	"fmt"
	"testing"
)

func TestChunkStreamReassembles(t *testing.T) {
	const size = 4
	lengths := []int{0, 1, size - 1, size, size + 1, 2*size + 3}

	for _, n := range lengths {
		n := n
		t.Run(fmt.Sprintf("len=%d", n), func(t *testing.T) {
			data := make([]byte, n)
			for i := range data {
				data[i] = byte(i)
			}
			stream := NewChunkStream(data, size)
			var got []byte
			chunks := 0
			for chunk := stream.Next(); chunk != nil; chunk = stream.Next() {
				if len(chunk) > size {
					t.Fatalf("chunk of %d bytes exceeds size %d", len(chunk), size)
				}
				got = append(got, chunk...)
				chunks++
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("reassembled %d bytes, want %d", len(got), len(data))
			}
			if want := (n + size - 1) / size; chunks != want {
				t.Fatalf("emitted %d chunks, want %d", chunks, want)
			}
		})
	}
}

func TestChunkStreamIsForwardOnly(t *testing.T) {
	stream := NewChunkStream([]byte("abcdef"), 4)
	if got := string(stream.Next()); got != "abcd" {
		t.Fatalf("first chunk %q, want abcd", got)
	}
	if got := string(stream.Next()); got != "ef" {
		t.Fatalf("second chunk %q, want ef", got)
	}
	if stream.Next() != nil {
		t.Fatalf("expected exhausted stream to return nil")
	}
}

func TestChunkStreamDefaultSize(t *testing.T) {
	data := make([]byte, DefaultBlockSize+1)
	stream := NewChunkStream(data, 0)
	if got := len(stream.Next()); got != DefaultBlockSize {
		t.Fatalf("first chunk %d bytes, want %d", got, DefaultBlockSize)
	}
}
