package interfaces

import "context"

// FetchedDocument is a raw source document and its page count
type FetchedDocument struct {
	Data      []byte
	PageCount int
	MIMEType  string
}

// DocumentFetcher retrieves source documents and cuts page ranges out of them
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
	// Slice returns a standalone document holding pages [start, end) (zero-based, end exclusive)
	Slice(ctx context.Context, data []byte, start, end int) ([]byte, error)
}
