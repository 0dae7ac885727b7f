package domain

import (
	"time"

	"golang.org/x/oauth2"
)

type Token struct {
	// token value
	Value string `json:"value" yaml:"value"`

	// When the token expires in unix time
	Expires int64 `json:"expires" yaml:"expires"`

	// refresh token, if any
	Refresh string `json:"refresh" yaml:"refresh"`

	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// NewToken creates a new token of the given value with the given Expire time set from a ttl in seconds.
func NewToken(value, refresh string, ttl int) *Token {
	return &Token{
		Value:   value,
		Refresh: refresh,
		Expires: time.Now().UTC().Add(time.Duration(ttl) * time.Second).Unix(),
	}
}

// FromOAuth2 converts a token handed out by golang.org/x/oauth2.
func FromOAuth2(t *oauth2.Token) *Token {
	tkn := &Token{Value: t.AccessToken, Refresh: t.RefreshToken, Type: t.TokenType}
	if !t.Expiry.IsZero() {
		tkn.Expires = t.Expiry.UTC().Unix()
	}
	return tkn
}

// OAuth2 converts back into a golang.org/x/oauth2 token.
func (t *Token) OAuth2() *oauth2.Token {
	o := &oauth2.Token{AccessToken: t.Value, RefreshToken: t.Refresh, TokenType: t.Type}
	if t.Expires > 0 {
		o.Expiry = time.Unix(t.Expires, 0).UTC()
	}
	return o
}

// HasExpired returns if the time now is past Expires
func (t *Token) HasExpired() bool {
	return time.Now().UTC().Unix() >= t.Expires
}
