package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentChunk is one indexed passage of an ingested document.
type DocumentChunk struct {
	Id             uuid.UUID
	DocumentId     string
	Content        string
	EmbeddingValue []float32
	ChunkIndex     int
	Metadata       map[string]interface{}
	CreatedAt      time.Time
}
