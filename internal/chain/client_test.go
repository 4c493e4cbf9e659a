package chain

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chaindto "github.com/radieske/jetton-slots/internal/chain/dto"
)

func TestClientSubmit(t *testing.T) {
	var got chaindto.TransferReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transfers", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(chaindto.TransferResp{Status: chaindto.StatusSubmitted, TxHash: "0xhash"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	hash, err := c.Submit(context.Background(), Transfer{
		WithdrawalID: "wd-1",
		Destination:  "EQowner",
		JettonWallet: "EQjetton",
		AmountNano:   big.NewInt(20_000_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, "0xhash", hash)
	assert.Equal(t, "20000000000", got.Amount)
	assert.Equal(t, "EQjetton", got.JettonWallet)
}

func TestClientSubmitErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		err     error
	}{
		{"rejected", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(chaindto.TransferResp{Status: chaindto.StatusRejected, Reason: "insufficient treasury"})
		}, ErrRejected},
		{"missing hash", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(chaindto.TransferResp{Status: chaindto.StatusSubmitted})
		}, ErrRejected},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}, ErrUnavailable},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{"))
		}, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			_, err := NewClient(srv.URL).Submit(context.Background(), Transfer{AmountNano: big.NewInt(1)})
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClientSubmitRejectsZeroAmount(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").Submit(context.Background(), Transfer{AmountNano: big.NewInt(0)})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Submit(context.Background(), Transfer{AmountNano: big.NewInt(1)})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClientJettonWallet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jetton-wallets/EQowner", r.URL.Path)
		_ = json.NewEncoder(w).Encode(chaindto.JettonWalletResp{Owner: "EQowner", Address: "EQjetton"})
	}))
	defer srv.Close()

	addr, err := NewClient(srv.URL).JettonWallet(context.Background(), "EQowner")
	require.NoError(t, err)
	assert.Equal(t, "EQjetton", addr)
}

func TestFuncSubmitter(t *testing.T) {
	var empty FuncSubmitter
	_, err := empty.Submit(context.Background(), Transfer{})
	assert.ErrorIs(t, err, ErrUnavailable)
	addr, err := empty.JettonWallet(context.Background(), "EQowner")
	require.NoError(t, err)
	assert.Equal(t, "EQowner", addr)

	f := FuncSubmitter{SubmitFunc: func(context.Context, Transfer) (string, error) { return "", errors.New("boom") }}
	_, err = f.Submit(context.Background(), Transfer{})
	assert.EqualError(t, err, "boom")
}
