package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type DocumentChunk struct {
	Id         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	DocumentId uuid.UUID       `gorm:"type:uuid;not null;index"`
	ChunkText  string          `gorm:"type:text;not null"`
	Embedding  pgvector.Vector `gorm:"type:vector(3072)"` // gemini-embedding-001 width
	CreatedAt  time.Time       `gorm:"autoCreateTime"`

	Document *Document `gorm:"foreignKey:DocumentId;constraint:OnDelete:CASCADE"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}
