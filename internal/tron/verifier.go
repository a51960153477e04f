package tron

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// transactionSource lets tests feed the verifier without a node.
type transactionSource interface {
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
}

// Verifier checks that a chain transaction actually pays the storefront:
// executed on chain, sent to the configured receive address, close enough
// in amount, and recent enough to rule out receipt replay.
type Verifier struct {
	source         transactionSource
	receiveAddress string
	tolerance      decimal.Decimal
	freshness      time.Duration
	now            func() time.Time
}

// NewVerifier wires a verifier around a node client.
func NewVerifier(source transactionSource, receiveAddress string, tolerance decimal.Decimal, freshness time.Duration) (*Verifier, error) {
	if source == nil {
		return nil, fmt.Errorf("transaction source required")
	}
	if receiveAddress == "" {
		return nil, fmt.Errorf("receive address required")
	}
	if tolerance.IsNegative() {
		return nil, fmt.Errorf("tolerance cannot be negative")
	}
	if freshness <= 0 {
		return nil, fmt.Errorf("freshness window must be positive")
	}
	return &Verifier{
		source:         source,
		receiveAddress: receiveAddress,
		tolerance:      tolerance,
		freshness:      freshness,
		now:            time.Now,
	}, nil
}

// ReceiveAddress exposes the address payments are checked against.
func (v *Verifier) ReceiveAddress() string {
	return v.receiveAddress
}

// Verify returns the transaction when it pays expectedAmount to the
// configured address, or a *VerifyError naming the first check that failed.
func (v *Verifier) Verify(ctx context.Context, txID string, expectedAmount decimal.Decimal) (*Transaction, error) {
	if !expectedAmount.IsPositive() {
		return nil, newVerifyError(ReasonMalformed, "expected amount must be positive")
	}

	chainTx, err := v.source.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}

	if !chainTx.Executed {
		return nil, newVerifyError(ReasonExecutionFailed, "transaction %s did not execute", txID)
	}
	if chainTx.ToAddress != v.receiveAddress {
		return nil, newVerifyError(ReasonWrongRecipient, "transaction pays %s", chainTx.ToAddress)
	}
	if chainTx.Amount.Sub(expectedAmount).Abs().GreaterThan(v.tolerance) {
		return nil, newVerifyError(ReasonAmountMismatch, "paid %s, expected %s", chainTx.Amount, expectedAmount)
	}
	if v.now().Sub(chainTx.Timestamp) > v.freshness {
		return nil, newVerifyError(ReasonExpired, "transaction confirmed at %s", chainTx.Timestamp.UTC().Format(time.RFC3339))
	}

	return chainTx, nil
}
