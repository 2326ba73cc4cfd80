package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func respondWith(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
}

func TestClient_FetchPrice(t *testing.T) {
	tests := []struct {
		name string
		body string
		want float64
	}{
		{name: "String price", body: `{"data":{"price":"1.23"}}`, want: 1.23},
		{name: "Numeric price", body: `{"code":"200000","data":{"price":0.0456,"size":"10"}}`, want: 0.0456},
		{name: "Integer string", body: `{"data":{"price":"42"}}`, want: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(respondWith(http.StatusOK, tt.body))
			defer server.Close()

			client := NewClient(zap.NewNop())
			got, err := client.FetchPrice(context.Background(), server.URL)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestClient_FetchPriceFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "Missing price", status: http.StatusOK, body: `{"data":{}}`},
		{name: "Missing data", status: http.StatusOK, body: `{"code":"400100","msg":"symbol not exists"}`},
		{name: "Null price", status: http.StatusOK, body: `{"data":{"price":null}}`},
		{name: "Non numeric price", status: http.StatusOK, body: `{"data":{"price":"n/a"}}`},
		{name: "Invalid JSON", status: http.StatusOK, body: `<html>down for maintenance</html>`},
		{name: "Server error", status: http.StatusBadGateway, body: `{"data":{"price":"1.0"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(respondWith(tt.status, tt.body))
			defer server.Close()

			client := NewClient(zap.NewNop())
			_, err := client.FetchPrice(context.Background(), server.URL)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPriceUnavailable)

			var priceErr *PriceError
			require.True(t, errors.As(err, &priceErr))
			assert.Equal(t, server.URL, priceErr.URL)
			assert.NotNil(t, priceErr.Unwrap())
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(zap.NewNop(), WithTimeout(50*time.Millisecond))
	_, err := client.FetchPrice(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(respondWith(http.StatusOK, `{"data":{"price":"1.23"}}`))
	url := server.URL
	server.Close()

	client := NewClient(zap.NewNop())
	_, err := client.FetchPrice(context.Background(), url)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestClient_FixedEndpoints(t *testing.T) {
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		requested = append(requested, symbol)

		prices := map[string]string{"EWT-USDT": "2.5", "XDC-USDT": "0.04"}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"price": prices[symbol]},
		})
	}))
	defer server.Close()

	client := NewClient(zap.NewNop(), WithEndpoints(Endpoints{
		EWT: server.URL + "/api/v1/market/orderbook/level1?symbol=EWT-USDT",
		XDC: server.URL + "/api/v1/market/orderbook/level1?symbol=XDC-USDT",
	}))

	ewt, err := client.FetchEWTPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.5, ewt)

	xdc, err := client.FetchXDCPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.04, xdc)

	assert.Equal(t, []string{"EWT-USDT", "XDC-USDT"}, requested)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(zap.NewNop())
	assert.Equal(t, DefaultTimeout, client.timeout)
	assert.Equal(t, EWTPriceURL, client.endpoints.EWT)
	assert.Equal(t, XDCPriceURL, client.endpoints.XDC)
}

func TestClient_TimeoutOptionOrder(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	tests := []struct {
		name string
		opts func(shared *http.Client) []Option
	}{
		{
			name: "Timeout after client",
			opts: func(shared *http.Client) []Option {
				return []Option{WithHTTPClient(shared), WithTimeout(50 * time.Millisecond)}
			},
		},
		{
			name: "Timeout before client",
			opts: func(shared *http.Client) []Option {
				return []Option{WithTimeout(50 * time.Millisecond), WithHTTPClient(shared)}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// no client level timeout: only the option bounds the request
			shared := &http.Client{}
			client := NewClient(zap.NewNop(), tt.opts(shared)...)

			start := time.Now()
			_, err := client.FetchPrice(context.Background(), server.URL)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPriceUnavailable)
			assert.Less(t, time.Since(start), 5*time.Second)

			assert.Equal(t, time.Duration(0), shared.Timeout)
			assert.Same(t, shared, client.httpClient)
		})
	}
}

func TestClient_KeepsInjectedClientTimeout(t *testing.T) {
	shared := &http.Client{Timeout: 30 * time.Second}
	client := NewClient(zap.NewNop(), WithHTTPClient(shared), WithTimeout(time.Second))

	assert.Equal(t, 30*time.Second, shared.Timeout)
	assert.Equal(t, time.Second, client.timeout)
}
