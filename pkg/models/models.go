package models

import (
	"time"
)

type User struct {
	ID                    string    `db:"id" json:"id"`
	Username              string    `db:"username" json:"username"`
	PasswordHash          string    `db:"password_hash" json:"-"`
	SecondFactorSecret    []byte    `db:"-" json:"-"`
	SecondFactorConfirmed bool      `db:"-" json:"second_factor_confirmed"`
	CreatedAt             time.Time `db:"-" json:"created_at"`
}

// HasSecondFactor reports whether the user has completed enrollment.
func (u *User) HasSecondFactor() bool {
	return u != nil && u.SecondFactorConfirmed
}

// UserUpdate carries a partial update; nil fields are left untouched.
type UserUpdate struct {
	SecondFactorSecret    []byte
	SecondFactorConfirmed *bool
}

type Session struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	SecondFactorPassed bool      `json:"second_factor_passed"`
	ExpiresAt          time.Time `json:"expires_at"`
	// Fresh is set when validation renewed the session. It is never stored.
	Fresh bool `json:"-"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Profile struct {
	UserID string `json:"user_id"`
	Angle  int    `json:"angle"`
	Color1 string `json:"color1"`
	Color2 string `json:"color2"`
}

const (
	DefaultProfileAngle  = 45
	DefaultProfileColor1 = "#888888ff"
	DefaultProfileColor2 = "#00000000"
)

// NewProfile returns the picture every account starts with.
func NewProfile(userID string) Profile {
	return Profile{
		UserID: userID,
		Angle:  DefaultProfileAngle,
		Color1: DefaultProfileColor1,
		Color2: DefaultProfileColor2,
	}
}

type ErrorPageData struct {
	Title       string
	StatusCode  int
	Message     string
	Description string
	Technical   string
	RetryURL    string
	ErrorID     string
}

// SecondFactorSetup is what the enrollment page shows.
type SecondFactorSetup struct {
	URI     string `json:"uri"`
	Secret  string `json:"secret"`
	QRCode  string `json:"qr_code"`
	Account string `json:"account"`
}
