package models

import (
	"time"
)

const (
	AccountStatusActive       = "active"
	AccountStatusDisconnected = "disconnected"
)

// SocialAccount is one platform credential of a user. AccountID addresses
// publish calls: the Snapchat ad account, the Instagram business account or
// the YouTube channel. Tokens are held in plaintext in memory and encrypted
// by the repository.
type SocialAccount struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Platform        Platform  `db:"platform" json:"platform"`
	AccountID       string    `db:"account_id" json:"account_id"`
	AccountName     string    `db:"account_name" json:"account_name"`
	AccountUsername string    `db:"account_username" json:"account_username"`
	AccessToken     string    `db:"access_token" json:"-"`
	RefreshToken    string    `db:"refresh_token" json:"-"`
	TokenExpiresAt  time.Time `db:"token_expires_at" json:"token_expires_at"`
	AccountStatus   string    `db:"account_status" json:"account_status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

func (a *SocialAccount) Connected() bool {
	return a != nil && a.AccountStatus == AccountStatusActive && a.AccessToken != ""
}

// TokenSet is the full token tuple written back after a refresh.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func (a SocialAccount) WithTokens(t TokenSet) SocialAccount {
	a.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		a.RefreshToken = t.RefreshToken
	}
	a.TokenExpiresAt = t.ExpiresAt
	return a
}

func (a SocialAccount) Tokens() TokenSet {
	return TokenSet{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		ExpiresAt:    a.TokenExpiresAt,
	}
}
