package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FileType string

const (
	FileTypeImage FileType = "IMAGE"
	FileTypeVideo FileType = "VIDEO"
	FileTypeOther FileType = "OTHER"
)

// File is the stored record produced by the upload collaborator.
// Messages and profiles reference files, they never own the bytes.
type File struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	Type     FileType `gorm:"type:text;default:'IMAGE'" json:"type"`
	URL      string   `gorm:"not null" json:"url"`
	Key      string   `gorm:"index" json:"-"` // object storage key
	MimeType string   `json:"mimeType"`
	Size     int64    `json:"size"`

	UploaderID string `gorm:"index" json:"uploaderId"`
}

func (f *File) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return
}
