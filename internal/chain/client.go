package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	chaindto "github.com/radieske/jetton-slots/internal/chain/dto"
)

// Client implementa Submitter e AddressResolver via HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(base string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Submit(ctx context.Context, t Transfer) (string, error) {
	if t.AmountNano == nil || t.AmountNano.Sign() <= 0 {
		return "", fmt.Errorf("%w: non-positive amount", ErrRejected)
	}
	body, err := json.Marshal(chaindto.TransferReq{
		WithdrawalID: t.WithdrawalID,
		Destination:  t.Destination,
		JettonWallet: t.JettonWallet,
		Amount:       t.AmountNano.String(),
		Memo:         t.Memo,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", fmt.Errorf("%w: transfer http %d", ErrUnavailable, res.StatusCode)
	}

	var out chaindto.TransferResp
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode transfer response: %v", ErrUnavailable, err)
	}
	if out.Status != chaindto.StatusSubmitted || out.TxHash == "" {
		reason := out.Reason
		if reason == "" {
			reason = "no transaction hash returned"
		}
		return "", fmt.Errorf("%w: %s", ErrRejected, reason)
	}
	return out.TxHash, nil
}

func (c *Client) JettonWallet(ctx context.Context, owner string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/jetton-wallets/"+url.PathEscape(owner), nil)
	if err != nil {
		return "", err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", fmt.Errorf("%w: jetton wallet http %d", ErrUnavailable, res.StatusCode)
	}

	var out chaindto.JettonWalletResp
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode jetton wallet: %v", ErrUnavailable, err)
	}
	if out.Address == "" {
		return "", fmt.Errorf("%w: empty jetton wallet for %s", ErrRejected, owner)
	}
	return out.Address, nil
}
