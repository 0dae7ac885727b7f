package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/gtank/cryptopasta"
)

// NewRandomKey generates a random key, base64 encoded. The encoded form is
// long enough to be used as a key by Seal and Open.
func NewRandomKey() (string, error) {
	key := make([]byte, 33)
	_, err := io.ReadFull(rand.Reader, key)
	return base64.RawURLEncoding.EncodeToString(key), err
}

// Seal encrypts plaintext with key and signs the cyphertext with sig.
// The result is "<cyphertext>.<hmac>", both base64 url encoded.
func Seal(plaintext []byte, key, sig string) (string, error) {
	rawkey, err := toKey(key)
	if err != nil {
		return "", err
	}
	rawsig, err := toKey(sig)
	if err != nil {
		return "", err
	}

	cyphertext, err := cryptopasta.Encrypt(plaintext, rawkey)
	if err != nil {
		return "", err
	}
	mac := cryptopasta.GenerateHMAC(cyphertext, rawsig)

	return base64.RawURLEncoding.EncodeToString(cyphertext) + "." + base64.RawURLEncoding.EncodeToString(mac), nil
}

// Open checks the signature of a sealed string and decrypts it.
func Open(sealed, key, sig string) ([]byte, error) {
	rawkey, err := toKey(key)
	if err != nil {
		return nil, err
	}
	rawsig, err := toKey(sig)
	if err != nil {
		return nil, err
	}

	bits := strings.SplitN(sealed, ".", 2)
	if len(bits) != 2 {
		return nil, fmt.Errorf("sealed string invalid")
	}

	cyphertext, err := base64.RawURLEncoding.DecodeString(bits[0])
	if err != nil {
		return nil, err
	}
	mac, err := base64.RawURLEncoding.DecodeString(bits[1])
	if err != nil {
		return nil, err
	}

	if !cryptopasta.CheckHMAC(cyphertext, mac, rawsig) {
		return nil, fmt.Errorf("signature validation failed")
	}

	return cryptopasta.Decrypt(cyphertext, rawkey)
}

// toKey turns a string of at least 32 chars into the *[32]byte cryptopasta
// wants.
func toKey(s string) (*[32]byte, error) {
	if len(s) < 32 {
		return nil, fmt.Errorf("key too short, want at least 32 chars")
	}
	data := &[32]byte{}
	copy(data[:], s)
	return data, nil
}
