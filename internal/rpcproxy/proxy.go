package rpcproxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/t77yq/txservice/internal/metrics"
)

const (
	xdcPrefix  = "xdc"
	hexPrefix  = "0x"
	maxBodyLen = 32 << 20
)

// methods whose second param is a block tag the XDC node cannot serve as "pending"
var pendingBlockMethods = map[string]struct{}{
	"eth_getTransactionCount": {},
	"eth_call":                {},
}

// methods reported under their own metrics label, everything else is "other"
var knownMethods = map[string]struct{}{
	"eth_blockNumber":           {},
	"eth_call":                  {},
	"eth_chainId":               {},
	"eth_estimateGas":           {},
	"eth_gasPrice":              {},
	"eth_getBalance":            {},
	"eth_getBlockByHash":        {},
	"eth_getBlockByNumber":      {},
	"eth_getCode":               {},
	"eth_getLogs":               {},
	"eth_getStorageAt":          {},
	"eth_getTransactionByHash":  {},
	"eth_getTransactionCount":   {},
	"eth_getTransactionReceipt": {},
	"eth_sendRawTransaction":    {},
	"net_version":               {},
	"web3_clientVersion":        {},
}

// ErrBodyTooLarge is returned when a node response exceeds the body limit
var ErrBodyTooLarge = errors.New("body exceeds size limit")

// Config configures the proxy
type Config struct {
	Target string
	Debug  bool
	// MaxBodyBytes bounds request and response bodies, 32MiB when zero
	MaxBodyBytes int64
}

// Proxy forwards JSON-RPC calls to an XDC node, translating between the XDC
// and ethereum dialects.
type Proxy struct {
	logger  *zap.Logger
	target  string
	debug   bool
	maxBody int64
	proxy   *httputil.ReverseProxy
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc,omitempty"`
	ID      json.RawMessage   `json:"id,omitempty"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

// New creates a new proxy for the node at cfg.Target
func New(cfg Config, logger *zap.Logger) (*Proxy, error) {
	target, err := url.Parse(cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("target url %q must be absolute", cfg.Target)
	}

	p := &Proxy{
		logger:  logger.Named("rpc-proxy"),
		target:  target.String(),
		debug:   cfg.Debug,
		maxBody: cfg.MaxBodyBytes,
	}
	if p.maxBody <= 0 {
		p.maxBody = maxBodyLen
	}

	p.proxy = &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.Out.Host = target.Host
			// responses are rewritten, so ask for an uncompressed body
			r.Out.Header.Del("Accept-Encoding")
		},
		ModifyResponse: p.modifyResponse,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.logger.Error("Failed to proxy request", zap.Error(err))
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	return p, nil
}

// Handler returns the proxy wrapped with a CORS policy allowing every origin.
// Access-Control-Allow-Origin is sent even when the request has no Origin header.
func (p *Proxy) Handler() http.Handler {
	handler := cors.AllowAll().Handler(p)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		handler.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil && r.Method == http.MethodPost {
		body, err := readLimited(r.Body, p.maxBody)
		r.Body.Close()
		if errors.Is(err, ErrBodyTooLarge) {
			metrics.ProxyRewritesTotal.WithLabelValues("too_large").Inc()
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		body = p.rewriteRequest(body)
		if p.debug {
			p.logger.Debug("Proxy request", zap.ByteString("body", body))
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		r.Header.Set("Content-Length", strconv.Itoa(len(body)))
	}

	p.proxy.ServeHTTP(w, r)
}

// rewriteRequest replaces the "pending" block tag with "latest" on single and batch calls.
// Bodies that are not JSON-RPC are forwarded untouched.
func (p *Proxy) rewriteRequest(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return body
	}

	if trimmed[0] == '[' {
		var batch []rpcRequest
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return body
		}
		changed := false
		for i := range batch {
			changed = p.rewriteCall(&batch[i]) || changed
		}
		if !changed {
			return body
		}
		out, err := json.Marshal(batch)
		if err != nil {
			return body
		}
		return out
	}

	var call rpcRequest
	if err := json.Unmarshal(trimmed, &call); err != nil {
		return body
	}
	if !p.rewriteCall(&call) {
		return body
	}
	out, err := json.Marshal(call)
	if err != nil {
		return body
	}
	return out
}

func (p *Proxy) rewriteCall(call *rpcRequest) bool {
	metrics.ProxyRequestsTotal.WithLabelValues(methodLabel(call.Method)).Inc()

	if _, ok := pendingBlockMethods[call.Method]; !ok || len(call.Params) < 2 {
		return false
	}

	var tag string
	if err := json.Unmarshal(call.Params[1], &tag); err != nil || tag != "pending" {
		return false
	}

	call.Params[1] = json.RawMessage(`"latest"`)
	metrics.ProxyRewritesTotal.WithLabelValues("pending_block").Inc()
	return true
}

// methodLabel keeps the method label set bounded whatever clients send
func methodLabel(method string) string {
	if _, ok := knownMethods[method]; ok {
		return method
	}
	return "other"
}

// readLimited reads r fully, failing with ErrBodyTooLarge past limit bytes
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w of %d bytes", ErrBodyTooLarge, limit)
	}
	return body, nil
}

func (p *Proxy) modifyResponse(resp *http.Response) error {
	body, err := readLimited(resp.Body, p.maxBody)
	resp.Body.Close()
	if errors.Is(err, ErrBodyTooLarge) {
		metrics.ProxyRewritesTotal.WithLabelValues("too_large").Inc()
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if p.debug {
		p.logger.Debug("Proxy response",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
	}

	out := RewriteResponse(body)

	resp.Body = io.NopCloser(bytes.NewReader(out))
	resp.ContentLength = int64(len(out))
	resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
	resp.Header.Set("Content-Type", "application/json")
	resp.Header.Del("Content-Encoding")
	// CORS headers come from Handler only
	resp.Header.Del("Access-Control-Allow-Origin")
	return nil
}

// RewriteResponse replaces the xdc prefix of every string value with 0x.
// Bodies that are not valid JSON are replaced with an empty object.
func RewriteResponse(body []byte) []byte {
	var data interface{}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&data); err != nil {
		metrics.ProxyRewritesTotal.WithLabelValues("invalid_json").Inc()
		return []byte("{}")
	}

	out, err := json.Marshal(rewriteValue(data))
	if err != nil {
		return []byte("{}")
	}
	return out
}

func rewriteValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if strings.HasPrefix(v, xdcPrefix) {
			metrics.ProxyRewritesTotal.WithLabelValues("xdc_prefix").Inc()
			return hexPrefix + strings.TrimPrefix(v, xdcPrefix)
		}
		return v
	case []interface{}:
		for i := range v {
			v[i] = rewriteValue(v[i])
		}
		return v
	case map[string]interface{}:
		for key, item := range v {
			v[key] = rewriteValue(item)
		}
		return v
	default:
		return v
	}
}
