package delivery

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken reports a malformed or forged download token.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired reports a well-signed token past its expiry.
	ErrTokenExpired = errors.New("download token expired")
)

// Claims are the fields carried by a download token.
type Claims struct {
	JobID     string
	FileName  string
	ExpiresAt time.Time
}

// Signer generates and validates signed download tokens.
type Signer struct {
	secret []byte
}

// NewSigner returns a signer keyed with secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign creates a token encoding the job id, file name and expiry.
func (s *Signer) Sign(jobID, fileName string, expiry time.Time) string {
	payload := fmt.Sprintf("%s|%s|%d", jobID, fileName, expiry.Unix())
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + s.signature([]byte(payload))
}

// Verify validates token at now and returns its claims.
func (s *Signer) Verify(token string, now time.Time) (Claims, error) {
	encoded, sig, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok {
		return Claims{}, fmt.Errorf("%w: format", ErrInvalidToken)
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: encoding", ErrInvalidToken)
	}
	if !hmac.Equal([]byte(sig), []byte(s.signature(payload))) {
		return Claims{}, fmt.Errorf("%w: signature", ErrInvalidToken)
	}

	fields := strings.Split(string(payload), "|")
	if len(fields) != 3 || fields[0] == "" || fields[1] == "" {
		return Claims{}, fmt.Errorf("%w: payload", ErrInvalidToken)
	}
	expiryUnix, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: expiry", ErrInvalidToken)
	}
	claims := Claims{JobID: fields[0], FileName: fields[1], ExpiresAt: time.Unix(expiryUnix, 0).UTC()}
	if now.Unix() > expiryUnix {
		return claims, ErrTokenExpired
	}
	return claims, nil
}

func (s *Signer) signature(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
