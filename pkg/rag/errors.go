package rag

import "errors"

var (
	// ErrRetrievalStoreEmpty is returned by stores that hold no documents.
	// The engine turns it into the no-documents answer.
	ErrRetrievalStoreEmpty = errors.New("retrieval store is empty")

	ErrRetrievalQueryFailed = errors.New("retrieval query failed")
)
