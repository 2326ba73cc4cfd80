package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/txservice/internal/model"
)

// newNodeServer answers eth_chainId with chainID
func newNodeServer(t *testing.T, chainID string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		if req.Method != "eth_chainId" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]interface{}{"code": -32601, "message": "method not found"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  chainID,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestEthereumDetector(t *testing.T) {
	tests := []struct {
		name    string
		chainID string
		want    model.Network
	}{
		{name: "Apothem", chainID: "0x33", want: model.NetworkApothem},
		{name: "XDC", chainID: "0x32", want: model.NetworkXDC},
		{name: "Unknown", chainID: "0x539", want: model.NetworkUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newNodeServer(t, tt.chainID)
			detector := NewEthereumDetector(server.URL, zap.NewNop())
			defer detector.Close()

			got, err := detector.GetNetwork(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEthereumDetector_NodeDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	detector := NewEthereumDetector(url, zap.NewNop())
	defer detector.Close()

	got, err := detector.GetNetwork(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.NetworkUnknown, got)
}

func TestStaticDetector(t *testing.T) {
	got, err := StaticDetector(model.NetworkVolta).GetNetwork(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.NetworkVolta, got)
	assert.Equal(t, "VOLTA", got.String())
}
