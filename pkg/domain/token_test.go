package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

func TestTokenExpiry(t *testing.T) {
	assert.False(t, NewToken("a", "r", 3600).HasExpired())
	assert.True(t, NewToken("a", "r", -10).HasExpired())
}

func TestTokenOAuth2RoundTrip(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second).UTC()
	o := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", Expiry: exp}

	tkn := FromOAuth2(o)
	assert.Equal(t, exp.Unix(), tkn.Expires)

	back := tkn.OAuth2()
	assert.Equal(t, o.AccessToken, back.AccessToken)
	assert.Equal(t, o.RefreshToken, back.RefreshToken)
	assert.True(t, exp.Equal(back.Expiry))
}

func TestLocationValidate(t *testing.T) {
	assert.NoError(t, (&Location{Lat: 52.5, Lon: 13.4, Accuracy: 10}).Validate())

	err := (&Location{Lat: 91, Lon: 13.4}).Validate()
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "lat must be at most 90")

	assert.Error(t, (&Location{Lat: 0, Lon: 0, Accuracy: -1}).Validate())
}
