package converter

import (
	"errors"
	"fmt"
)

// ErrNoPages is returned for a document with no pages. It is an input error and is not retried.
var ErrNoPages = errors.New("document has no pages")

// Chunk is a zero-based, end-exclusive page range
type Chunk struct {
	Index int
	Start int
	End   int
}

// Pages returns the number of pages in the chunk
func (c Chunk) Pages() int {
	return c.End - c.Start
}

// PlanChunks partitions total pages into chunks of size pages. When the pages
// remaining from a chunk's start are at most size+tail, that chunk absorbs
// them all so no short trailing chunk is produced.
func PlanChunks(total, size, tail int) ([]Chunk, error) {
	if total <= 0 {
		return nil, ErrNoPages
	}
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if tail < 0 {
		return nil, fmt.Errorf("tail merge threshold must not be negative, got %d", tail)
	}

	var chunks []Chunk
	for start := 0; start < total; start += size {
		if total-start <= size+tail {
			chunks = append(chunks, Chunk{Index: len(chunks), Start: start, End: total})
			break
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Start: start, End: start + size})
	}
	return chunks, nil
}
