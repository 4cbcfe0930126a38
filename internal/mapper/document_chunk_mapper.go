package mapper

import (
	"encoding/json"

	"nexus-ai-be/internal/entity"
	"nexus-ai-be/internal/model"
)

type DocumentChunkMapper struct{}

func NewDocumentChunkMapper() *DocumentChunkMapper {
	return &DocumentChunkMapper{}
}

func (m *DocumentChunkMapper) ToEntity(c *model.DocumentChunk) *entity.DocumentChunk {
	if c == nil {
		return nil
	}

	var metadata map[string]interface{}
	if len(c.Metadata) > 0 {
		_ = json.Unmarshal(c.Metadata, &metadata)
	}

	documentId := c.DocumentId
	if documentId == "" {
		// older ingestions only recorded the id in metadata
		if id, ok := metadata["doc_id"].(string); ok {
			documentId = id
		}
	}

	return &entity.DocumentChunk{
		Id:             c.Id,
		DocumentId:     documentId,
		Content:        c.Content,
		EmbeddingValue: c.EmbeddingValue.Slice(),
		ChunkIndex:     c.ChunkIndex,
		Metadata:       metadata,
		CreatedAt:      c.CreatedAt,
	}
}
