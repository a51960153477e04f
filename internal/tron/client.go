package tron

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// sunPerTRX is the smallest-unit scale TRON amounts arrive in.
var sunPerTRX = decimal.NewFromInt(1_000_000)

// Transaction is the subset of an on-chain transfer the verifier cares
// about, with addresses already in base58 form and the amount in TRX.
type Transaction struct {
	TxID        string
	Executed    bool
	ToAddress   string
	FromAddress string
	Amount      decimal.Decimal
	Timestamp   time.Time
}

// Client talks to a TRON full node over its HTTP wallet API.
type Client struct {
	nodeURL string
	http    *http.Client
}

// NewClient builds a node client. The timeout bounds every request.
func NewClient(nodeURL string, timeout time.Duration) (*Client, error) {
	nodeURL = strings.TrimRight(strings.TrimSpace(nodeURL), "/")
	if nodeURL == "" {
		return nil, fmt.Errorf("node url required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		nodeURL: nodeURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type getTransactionRequest struct {
	Value string `json:"value"`
}

type getTransactionResponse struct {
	TxID string `json:"txID"`
	Ret  []struct {
		ContractRet string `json:"contractRet"`
	} `json:"ret"`
	RawData struct {
		Timestamp int64 `json:"timestamp"`
		Contract  []struct {
			Type      string `json:"type"`
			Parameter struct {
				Value struct {
					Amount       int64  `json:"amount"`
					OwnerAddress string `json:"owner_address"`
					ToAddress    string `json:"to_address"`
				} `json:"value"`
			} `json:"parameter"`
		} `json:"contract"`
	} `json:"raw_data"`
}

// GetTransaction looks up a transaction by id. A transaction the chain does
// not know yields ReasonNotFound; node trouble yields ReasonUnavailable.
func (c *Client) GetTransaction(ctx context.Context, txID string) (*Transaction, error) {
	txID = strings.TrimSpace(txID)
	if txID == "" {
		return nil, newVerifyError(ReasonMalformed, "empty transaction id")
	}

	body, err := json.Marshal(getTransactionRequest{Value: txID})
	if err != nil {
		return nil, newVerifyError(ReasonMalformed, "encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL+"/wallet/gettransactionbyid", bytes.NewReader(body))
	if err != nil {
		return nil, newVerifyError(ReasonUnavailable, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newVerifyError(ReasonUnavailable, "node request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newVerifyError(ReasonUnavailable, "node returned status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, newVerifyError(ReasonUnavailable, "read node response: %v", err)
	}

	var decoded getTransactionResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, newVerifyError(ReasonMalformed, "decode node response: %v", err)
	}

	// The node answers an unknown id with an empty object.
	if decoded.TxID == "" && len(decoded.Ret) == 0 {
		return nil, newVerifyError(ReasonNotFound, "transaction %s not found", txID)
	}
	if len(decoded.RawData.Contract) == 0 {
		return nil, newVerifyError(ReasonMalformed, "transaction %s carries no contract", txID)
	}

	executed := len(decoded.Ret) > 0 && decoded.Ret[0].ContractRet == "SUCCESS"
	value := decoded.RawData.Contract[0].Parameter.Value

	toAddress, err := HexToBase58(value.ToAddress)
	if err != nil {
		return nil, newVerifyError(ReasonMalformed, "recipient address: %v", err)
	}
	fromAddress, err := HexToBase58(value.OwnerAddress)
	if err != nil {
		return nil, newVerifyError(ReasonMalformed, "sender address: %v", err)
	}

	return &Transaction{
		TxID:        txID,
		Executed:    executed,
		ToAddress:   toAddress,
		FromAddress: fromAddress,
		Amount:      decimal.NewFromInt(value.Amount).Div(sunPerTRX),
		Timestamp:   time.UnixMilli(decoded.RawData.Timestamp),
	}, nil
}
