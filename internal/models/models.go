package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const (
	ComplaintStatusNew      = "new"
	ComplaintStatusPending  = "pending"
	ComplaintStatusPaused   = "paused"
	ComplaintStatusResolved = "resolved"
)

type User struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"  json:"id"`
	Username        string     `gorm:"index;not null"        json:"username"`
	Email           string     `gorm:"uniqueIndex;not null"  json:"email"`
	PasswordHash    string     `gorm:"not null"              json:"-"`
	IsActive        bool       `gorm:"not null;default:true" json:"is_active"`
	IsSuperuser     bool       `gorm:"not null"              json:"is_superuser"`
	IsEmailVerified bool       `gorm:"not null"              json:"is_email_verified"`
	LastLogin       *time.Time `json:"last_login"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Token is a ledger row for every issued access or refresh token.
// AccessJTI is set only on refresh rows and points at the jti of the
// currently live paired access row.
type Token struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"      json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;index;not null"  json:"user_id"`
	JTI       string     `gorm:"uniqueIndex;not null"      json:"jti"`
	AccessJTI string     `gorm:"column:access_jti"         json:"access_jti,omitempty"`
	Type      string     `gorm:"not null"                  json:"type"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `gorm:"not null"                  json:"expires_at"`
	Revoked   bool       `gorm:"not null;index"            json:"revoked"`
	RevokedAt *time.Time `json:"revoked_at"`
	Reason    string     `json:"reason,omitempty"`
}

// Otp holds at most one active verification code per email. The plaintext
// code never touches storage, only its bcrypt hash.
type Otp struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	Email     string    `gorm:"uniqueIndex;not null"     json:"email"`
	CodeHash  string    `gorm:"not null"                 json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type Complaint struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Type           string    `gorm:"not null"                 json:"type"`
	Description    string    `gorm:"not null"                 json:"description"`
	SupportingDocs string    `json:"supporting_docs,omitempty"`
	Status         string    `gorm:"not null;index"           json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type Feedback struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null"       json:"user_id"`
	ComplaintID uuid.UUID `gorm:"type:uuid;index;not null" json:"complaint_id"`
	Message     string    `gorm:"not null"                 json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (o *Otp) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (c *Complaint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (f *Feedback) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
