package rpcproxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newNode starts a fake node recording the last request body and replying with reply
func newNode(t *testing.T, reply string) (*httptest.Server, *[]byte) {
	t.Helper()

	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		received = body

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, reply)
	}))
	t.Cleanup(server.Close)
	return server, &received
}

func newProxyServer(t *testing.T, target string) *httptest.Server {
	t.Helper()

	proxy, err := New(Config{Target: target}, zap.NewNop())
	require.NoError(t, err)

	server := httptest.NewServer(proxy.Handler())
	t.Cleanup(server.Close)
	return server
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://wallet.example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func TestProxy_RewritesPendingBlockTag(t *testing.T) {
	node, received := newNode(t, `{"jsonrpc":"2.0","id":1,"result":"0x1"}`)
	proxy := newProxyServer(t, node.URL)

	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "Transaction count",
			body: `{"jsonrpc":"2.0","id":1,"method":"eth_getTransactionCount","params":["xdc0000000000000000000000000000000000000001","pending"]}`,
			want: []string{"latest"},
		},
		{
			name: "Call",
			body: `{"jsonrpc":"2.0","id":2,"method":"eth_call","params":[{"to":"0x01"},"pending"]}`,
			want: []string{"latest"},
		},
		{
			name: "Other method untouched",
			body: `{"jsonrpc":"2.0","id":3,"method":"eth_getBalance","params":["0x01","pending"]}`,
			want: []string{"pending"},
		},
		{
			name: "Batch",
			body: `[{"jsonrpc":"2.0","id":4,"method":"eth_call","params":[{"to":"0x01"},"pending"]},{"jsonrpc":"2.0","id":5,"method":"eth_blockNumber"}]`,
			want: []string{"latest"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := post(t, proxy.URL, tt.body)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var calls []rpcRequest
			if strings.HasPrefix(tt.body, "[") {
				require.NoError(t, json.Unmarshal(*received, &calls))
			} else {
				var call rpcRequest
				require.NoError(t, json.Unmarshal(*received, &call))
				calls = []rpcRequest{call}
			}

			var tag string
			require.NoError(t, json.Unmarshal(calls[0].Params[1], &tag))
			assert.Equal(t, tt.want[0], tag)
		})
	}
}

func TestProxy_RewritesXDCAddresses(t *testing.T) {
	node, _ := newNode(t, `{"jsonrpc":"2.0","id":1,"result":{"from":"xdcabc","to":"0xdef","logs":[{"address":"xdc123","data":"0x"}],"gas":21000,"note":"an xdc string"}}`)
	proxy := newProxyServer(t, node.URL)

	resp, body := post(t, proxy.URL, `{"jsonrpc":"2.0","id":1,"method":"eth_getTransactionByHash","params":["0x01"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var result struct {
		Result struct {
			From string `json:"from"`
			To   string `json:"to"`
			Logs []struct {
				Address string `json:"address"`
			} `json:"logs"`
			Gas  int    `json:"gas"`
			Note string `json:"note"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "0xabc", result.Result.From)
	assert.Equal(t, "0xdef", result.Result.To)
	require.Len(t, result.Result.Logs, 1)
	assert.Equal(t, "0x123", result.Result.Logs[0].Address)
	assert.Equal(t, 21000, result.Result.Gas)
	assert.Equal(t, "an xdc string", result.Result.Note)
}

func TestProxy_InvalidResponse(t *testing.T) {
	node, _ := newNode(t, `<html>bad gateway</html>`)
	proxy := newProxyServer(t, node.URL)

	_, body := post(t, proxy.URL, `{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber"}`)
	assert.JSONEq(t, `{}`, string(body))
}

func TestRewriteResponse_KeepsLargeNumbers(t *testing.T) {
	out := RewriteResponse([]byte(`{"value":123456789012345678901234567890,"hash":"xdcff"}`))
	assert.JSONEq(t, `{"value":123456789012345678901234567890,"hash":"0xff"}`, string(out))
}

func TestNew_InvalidTarget(t *testing.T) {
	_, err := New(Config{Target: "rpc.apothem.network"}, zap.NewNop())
	assert.Error(t, err)
}

func TestRouter(t *testing.T) {
	node, _ := newNode(t, `{"jsonrpc":"2.0","id":1,"result":"xdc01"}`)
	proxy, err := New(Config{Target: node.URL}, zap.NewNop())
	require.NoError(t, err)

	server := httptest.NewServer(NewRouter(proxy))
	t.Cleanup(server.Close)

	t.Run("Health", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		var health map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
		assert.Equal(t, "ok", health["status"])
		assert.Equal(t, node.URL, health["target"])
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Forward", func(t *testing.T) {
		_, body := post(t, server.URL+"/", `{"jsonrpc":"2.0","id":1,"method":"eth_coinbase"}`)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"0x01"}`, string(body))
	})
}

func TestMethodLabel(t *testing.T) {
	assert.Equal(t, "eth_call", methodLabel("eth_call"))
	assert.Equal(t, "eth_getTransactionCount", methodLabel("eth_getTransactionCount"))
	assert.Equal(t, "other", methodLabel("junk_8f3a2c"))
	assert.Equal(t, "other", methodLabel(""))
}

func TestProxy_BodyLimit(t *testing.T) {
	node, _ := newNode(t, `{"jsonrpc":"2.0","id":1,"result":"`+strings.Repeat("a", 256)+`"}`)
	proxy, err := New(Config{Target: node.URL, MaxBodyBytes: 128}, zap.NewNop())
	require.NoError(t, err)
	server := httptest.NewServer(proxy.Handler())
	t.Cleanup(server.Close)

	t.Run("Response too large", func(t *testing.T) {
		resp, body := post(t, server.URL, `{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber"}`)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Empty(t, body)
	})

	t.Run("Request too large", func(t *testing.T) {
		call := `{"jsonrpc":"2.0","id":1,"method":"eth_sendRawTransaction","params":["0x` + strings.Repeat("ab", 128) + `"]}`
		resp, _ := post(t, server.URL, call)
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})
}

func TestReadLimited(t *testing.T) {
	body, err := readLimited(strings.NewReader("12345678"), 8)
	require.NoError(t, err)
	assert.Equal(t, "12345678", string(body))

	_, err = readLimited(strings.NewReader("123456789"), 8)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestProxy_AllowOriginWithoutOrigin(t *testing.T) {
	node, _ := newNode(t, `{"jsonrpc":"2.0","id":1,"result":"0x1"}`)
	proxy := newProxyServer(t, node.URL)

	resp, err := http.Post(proxy.URL, "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"*"}, resp.Header.Values("Access-Control-Allow-Origin"))
}
