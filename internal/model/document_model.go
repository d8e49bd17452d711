package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Document struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey"`
	FileName        string    `gorm:"type:text;not null"`
	Status          string    `gorm:"type:text;not null;default:'uploaded';index"`
	FailedStage     *string   `gorm:"type:text"`
	ErrorMessage    *string   `gorm:"type:text"`
	ChunksTotal     int       `gorm:"not null;default:0"`
	ChunksProcessed int       `gorm:"not null;default:0"`
	Metadata        datatypes.JSON
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (Document) TableName() string {
	return "documents"
}
