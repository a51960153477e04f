package tron

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	tx  *Transaction
	err error
}

func (s *stubSource) GetTransaction(ctx context.Context, txID string) (*Transaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tx, nil
}

func newTestVerifier(t *testing.T, source transactionSource) *Verifier {
	t.Helper()

	verifier, err := NewVerifier(source, receiveBase58, decimal.RequireFromString("0.01"), time.Hour)
	require.NoError(t, err)
	return verifier
}

func goodTransfer(amount string) *Transaction {
	return &Transaction{
		TxID:        "abc123",
		Executed:    true,
		ToAddress:   receiveBase58,
		FromAddress: senderBase58,
		Amount:      decimal.RequireFromString(amount),
		Timestamp:   time.Now().Add(-5 * time.Minute),
	}
}

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()

	var verifyErr *VerifyError
	require.ErrorAs(t, err, &verifyErr)
	return verifyErr.Reason
}

func TestVerifyAcceptsMatchingTransfer(t *testing.T) {
	verifier := newTestVerifier(t, &stubSource{tx: goodTransfer("25.00")})

	chainTx, err := verifier.Verify(context.Background(), "abc123", decimal.RequireFromString("25.00"))
	require.NoError(t, err)
	assert.Equal(t, senderBase58, chainTx.FromAddress)
}

func TestVerifyAcceptsWithinTolerance(t *testing.T) {
	verifier := newTestVerifier(t, &stubSource{tx: goodTransfer("24.995")})

	_, err := verifier.Verify(context.Background(), "abc123", decimal.RequireFromString("25.00"))
	require.NoError(t, err)
}

func TestVerifyRejectsAmountOutsideTolerance(t *testing.T) {
	verifier := newTestVerifier(t, &stubSource{tx: goodTransfer("24.98")})

	_, err := verifier.Verify(context.Background(), "abc123", decimal.RequireFromString("25.00"))
	assert.Equal(t, ReasonAmountMismatch, reasonOf(t, err))
}

func TestVerifyRejectsFailedExecution(t *testing.T) {
	chainTx := goodTransfer("25.00")
	chainTx.Executed = false
	verifier := newTestVerifier(t, &stubSource{tx: chainTx})

	_, err := verifier.Verify(context.Background(), "abc123", decimal.RequireFromString("25.00"))
	assert.Equal(t, ReasonExecutionFailed, reasonOf(t, err))
}

func TestVerifyRejectsWrongRecipient(t *testing.T) {
	chainTx := goodTransfer("25.00")
	chainTx.ToAddress = senderBase58
	verifier := newTestVerifier(t, &stubSource{tx: chainTx})

	_, err := verifier.Verify(context.Background(), "abc123", decimal.RequireFromString("25.00"))
	assert.Equal(t, ReasonWrongRecipient, reasonOf(t, err))
}

func TestVerifyRejectsStaleTransfer(t *testing.T) {
	chainTx := goodTransfer("25.00")
	chainTx.Timestamp = time.Now().Add(-2 * time.Hour)
	verifier := newTestVerifier(t, &stubSource{tx: chainTx})

	_, err := verifier.Verify(context.Background(), "abc123", decimal.RequireFromString("25.00"))
	assert.Equal(t, ReasonExpired, reasonOf(t, err))
}

func TestVerifyPropagatesSourceErrors(t *testing.T) {
	verifier := newTestVerifier(t, &stubSource{err: newVerifyError(ReasonUnavailable, "node down")})

	_, err := verifier.Verify(context.Background(), "abc123", decimal.RequireFromString("25.00"))
	assert.Equal(t, ReasonUnavailable, reasonOf(t, err))
}

func TestVerifyRejectsNonPositiveExpectedAmount(t *testing.T) {
	verifier := newTestVerifier(t, &stubSource{tx: goodTransfer("25.00")})

	_, err := verifier.Verify(context.Background(), "abc123", decimal.Zero)
	assert.Equal(t, ReasonMalformed, reasonOf(t, err))
}
