package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a feed entry; anonymous posts hide their author from readers.
type Post struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	AuthorID string `gorm:"index;type:text;not null" json:"authorId"`
	Content  string `gorm:"type:text" json:"content"`
	// Posted anonymously: author hidden from readers
	IsAnonymous bool `gorm:"default:false" json:"isAnonymous"`

	LikeCount    int `gorm:"default:0" json:"likeCount"`
	CommentCount int `gorm:"default:0" json:"commentCount"`

	Author   *User         `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Comments []PostComment `gorm:"foreignKey:PostID" json:"comments,omitempty"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}

type PostComment struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	PostID   string `gorm:"index;type:text;not null" json:"postId"`
	AuthorID string `gorm:"index;type:text;not null" json:"authorId"`
	Content  string `gorm:"type:text;not null" json:"content"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

func (pc *PostComment) BeforeCreate(tx *gorm.DB) (err error) {
	if pc.ID == "" {
		pc.ID = uuid.New().String()
	}
	return
}

type PostLike struct {
	PostID    string    `gorm:"primaryKey;type:text" json:"postId"`
	UserID    string    `gorm:"primaryKey;type:text" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
