package curriculum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EmbeddingVector is the in-memory form consumed by clustering.
type EmbeddingVector struct {
	ContentID string    `json:"content_id" yaml:"content_id"`
	Vector    []float32 `json:"embedding" yaml:"embedding"`
}

// ContentEmbedding is a stored vector for one content item under one model.
// TextHash lets a later run detect that the source text changed.
type ContentEmbedding struct {
	ContentID uuid.UUID      `gorm:"type:uuid;primaryKey" json:"content_id"`
	Model     string         `gorm:"column:model;primaryKey" json:"model"`
	ProgramID uuid.UUID      `gorm:"type:uuid;not null;index" json:"program_id"`
	TextHash  string         `gorm:"column:text_hash;not null" json:"text_hash"`
	Dim       int            `gorm:"column:dim;not null" json:"dim"`
	Vector    datatypes.JSON `gorm:"column:vector;type:jsonb;not null" json:"vector"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (ContentEmbedding) TableName() string { return "content_embedding" }

func (e *ContentEmbedding) Values() ([]float32, error) {
	if e == nil || len(e.Vector) == 0 {
		return nil, fmt.Errorf("empty embedding")
	}
	var out []float32
	if err := json.Unmarshal(e.Vector, &out); err != nil {
		return nil, fmt.Errorf("decode embedding for %s: %w", e.ContentID, err)
	}
	return out, nil
}

func EncodeVector(v []float32) datatypes.JSON {
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

func HashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
