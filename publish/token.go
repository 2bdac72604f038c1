package publish

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken reports a download token that never came from this
	// server or was mangled in transit.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrLinkExpired reports a well-formed token past its expiry.
	ErrLinkExpired = errors.New("download link expired")
)

// SignToken wraps a relative file path in an expiring, URL-safe token and
// returns the token plus its expiry as a Unix timestamp. The payload is
// XORed with the key; this keeps paths out of casual sight and links
// expirable, it is not cryptographic protection.
func SignToken(path, key string, ttl time.Duration) (string, int64) {
	expires := time.Now().Add(ttl).Unix()
	payload := fmt.Sprintf("%d:%s", expires, path)
	return base64.RawURLEncoding.EncodeToString(xorBytes([]byte(payload), key)), expires
}

// VerifyToken reverses SignToken, returning the embedded path. Tokens that
// fail to decode yield ErrInvalidToken; decodable tokens past their expiry
// yield ErrLinkExpired.
func VerifyToken(token, key string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	parts := strings.SplitN(string(xorBytes(raw, key)), ":", 2)
	if len(parts) != 2 {
		return "", ErrInvalidToken
	}
	expires, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if time.Now().Unix() > expires {
		return "", ErrLinkExpired
	}
	return parts[1], nil
}

func xorBytes(data []byte, key string) []byte {
	if key == "" {
		key = "slideshow"
	}
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ key[i%len(key)]
	}
	return out
}
