package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Venterweb3-wq/zodiak/internal/config"
	"github.com/Venterweb3-wq/zodiak/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(&config.GatewayConfig{
		BaseURL:        baseURL,
		APIToken:       "outbound-token",
		TimeoutSeconds: 2,
	})
}

func TestGenerateAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate_wallet", r.URL.Path)
		assert.Equal(t, "Bearer outbound-token", r.Header.Get("Authorization"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "TRC20", req["network"])

		json.NewEncoder(w).Encode(GeneratedWallet{
			Address:             "TGeneratedAddr",
			EncryptedPrivateKey: "opaque-blob",
			Network:             "TRC20",
		})
	}))
	defer server.Close()

	wallet, err := newTestClient(server.URL).GenerateAddress(context.Background(), "TRC20")
	require.NoError(t, err)
	assert.Equal(t, "TGeneratedAddr", wallet.Address)
	assert.Equal(t, "opaque-blob", wallet.EncryptedPrivateKey)
}

func TestGenerateAddressErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GenerateAddress(context.Background(), "TRC20")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindGatewayUnavailable))
}

func TestGenerateAddressIncompleteResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 缺私钥密文
		json.NewEncoder(w).Encode(map[string]string{
			"address": "TGeneratedAddr",
			"network": "TRC20",
		})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GenerateAddress(context.Background(), "TRC20")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindGatewayUnavailable))
}

func TestGenerateAddressNetworkMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GeneratedWallet{
			Address:             "0xGeneratedAddr",
			EncryptedPrivateKey: "opaque-blob",
			Network:             "BEP20",
		})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GenerateAddress(context.Background(), "TRC20")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindGatewayUnavailable))
}

func TestGenerateAddressConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 立即关掉，模拟不可达

	_, err := newTestClient(server.URL).GenerateAddress(context.Background(), "TRC20")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindGatewayUnavailable))
}
