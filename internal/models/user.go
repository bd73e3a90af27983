package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

type User struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	NickName string     `json:"nickName"`
	Email    string     `gorm:"uniqueIndex" json:"email"`
	Intro    string     `json:"intro"`
	Birthday *time.Time `json:"birthday"`
	Gender   Gender     `gorm:"type:text;default:'OTHER'" json:"gender"`
	Age      int        `json:"age"`

	// Enums stored as strings
	Role Role `gorm:"type:text;default:'USER'" json:"role"`

	// Profile media
	AvatarID *string `json:"avatarId"`
	Avatar   *File   `gorm:"foreignKey:AvatarID" json:"avatar,omitempty"`

	// Postgres string arrays
	Hobbies    pq.StringArray `gorm:"type:text[]" json:"hobbies"`
	PushTokens pq.StringArray `gorm:"type:text[]" json:"-"`

	// Anonymous matchmaking intent flag; cleared when a pairing succeeds
	LookingForAnonymousChat bool `gorm:"default:false" json:"lookingForAnonymousChat"`

	OnlineStatus  string     `gorm:"type:text;default:'OFFLINE'" json:"onlineStatus"`
	LastOnlineAt  *time.Time `json:"lastOnlineAt"`
	ShowActive    bool       `gorm:"default:true" json:"showActive"`
	IsBlocked     bool       `gorm:"default:false" json:"isBlocked"`
	EmailVerified *time.Time `json:"emailVerified"`

	Password string `json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
