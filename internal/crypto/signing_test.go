package crypto

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner(t *testing.T) *AuditSigner {
	t.Helper()
	secret := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	signer, err := NewAuditSigner(secret)
	require.NoError(t, err)
	return signer
}

func TestSignAndVerify(t *testing.T) {
	signer := testSigner(t)
	ts := time.Now().UTC().Format(time.RFC3339)

	sig := signer.Sign("FINANCIAL_ALERT", "alert-1", "CREATE", "user-1", ts)
	assert.NotEmpty(t, sig)
	assert.True(t, signer.Verify("FINANCIAL_ALERT", "alert-1", "CREATE", "user-1", ts, sig))
}

func TestVerifyRejectsTamperedFields(t *testing.T) {
	signer := testSigner(t)
	ts := time.Now().UTC().Format(time.RFC3339)
	sig := signer.Sign("FINANCIAL_ALERT", "alert-1", "CREATE", "user-1", ts)

	assert.False(t, signer.Verify("FINANCIAL_ALERT", "alert-2", "CREATE", "user-1", ts, sig))
	assert.False(t, signer.Verify("FINANCIAL_ALERT", "alert-1", "DELETE", "user-1", ts, sig))
	assert.False(t, signer.Verify("FINANCIAL_ALERT", "alert-1", "CREATE", "user-2", ts, sig))
}

func TestNewAuditSignerRejectsBadSecrets(t *testing.T) {
	_, err := NewAuditSigner("not base64!!!")
	assert.Error(t, err)

	_, err = NewAuditSigner("")
	assert.Error(t, err)
}
