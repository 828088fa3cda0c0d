package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// AuditSigner produces HMAC-SHA256 signatures over audit record fields
// for tamper evidence on the append-only attribution trail.
type AuditSigner struct {
	secret []byte
}

// NewAuditSigner creates a signer from a base64-encoded secret
func NewAuditSigner(secretBase64 string) (*AuditSigner, error) {
	secret, err := base64.StdEncoding.DecodeString(secretBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode HMAC secret: %w", err)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("HMAC secret must not be empty")
	}
	return &AuditSigner{secret: secret}, nil
}

// Sign creates an HMAC signature over the identifying fields of an audit record
func (s *AuditSigner) Sign(entityType, entityID, action, actor, timestamp string) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s", entityType, entityID, action, actor, timestamp)
	return s.hmac(data)
}

// Verify checks a previously generated signature
func (s *AuditSigner) Verify(entityType, entityID, action, actor, timestamp, signature string) bool {
	expected := s.Sign(entityType, entityID, action, actor, timestamp)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *AuditSigner) hmac(data string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
