// Package rpc implements the JSON-RPC session object the command processors
// drive. The client is stateful: signing key, chain id, endpoint, and debug
// flag are applied through setters before an operation is invoked. Remote
// failures surface verbatim as text; transient transport failures are
// retried with jittered backoff.
package rpc

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	mrand "math/rand"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	clierr "github.com/cita-toolkit/citactl/internal/errors"
	"github.com/cita-toolkit/citactl/internal/parse"
)

// AmendAddress is the reserved account administrative amend transactions
// are addressed to. The value field of the transaction selects the type.
const AmendAddress = "0xffffffffffffffffffffffffffffffffff010002"

const (
	typeAmendABI     byte = 1
	typeAmendCode    byte = 2
	typeAmendKVH256  byte = 3
	typeAmendBalance byte = 5
)

// DefaultQuota applies when the caller did not supply --quota.
const DefaultQuota uint64 = 1_000_000

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Client struct {
	url        string
	chainID    uint32
	key        *parse.PrivateKey
	debug      bool
	debugOut   io.Writer
	httpClient *http.Client
	retries    int
	nextID     uint64
}

func New(timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		debugOut:   os.Stderr,
	}
}

func (c *Client) SetURL(url string)                  { c.url = url }
func (c *Client) SetChainID(id uint32)               { c.chainID = id }
func (c *Client) SetPrivateKey(key *parse.PrivateKey) { c.key = key }
func (c *Client) SetDebug(debug bool)                { c.debug = debug }

// Call performs one JSON-RPC request against the configured endpoint.
func (c *Client) Call(ctx context.Context, method string, params ...any) (*Response, error) {
	if params == nil {
		params = []any{}
	}
	c.nextID++
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode rpc request", err)
	}
	if c.debug {
		fmt.Fprintf(c.debugOut, "--> %s %s\n", c.url, body)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, clierr.Wrap(clierr.CodeRemote, "request cancelled", ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "build rpc request", err)
		}
		req.Header.Set("Content-Type", "application/json")

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = mapNetError(err)
			continue
		}

		buf, readErr := io.ReadAll(httpResp.Body)
		_ = httpResp.Body.Close()
		if readErr != nil {
			lastErr = clierr.Wrap(clierr.CodeRemote, "read node response", readErr)
			continue
		}
		if c.debug {
			fmt.Fprintf(c.debugOut, "<-- %d %s\n", httpResp.StatusCode, buf)
		}

		if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= http.StatusInternalServerError {
			lastErr = clierr.New(clierr.CodeRemote, fmt.Sprintf("node returned status %d", httpResp.StatusCode))
			continue
		}
		if httpResp.StatusCode != http.StatusOK {
			return nil, clierr.New(clierr.CodeRemote, fmt.Sprintf("node returned status %d: %s", httpResp.StatusCode, bytes.TrimSpace(buf)))
		}

		var resp Response
		if err := json.Unmarshal(buf, &resp); err != nil {
			return nil, clierr.Wrap(clierr.CodeRemote, "decode node response", err)
		}
		if resp.Error != nil {
			return nil, clierr.New(clierr.CodeRemote, resp.Error.Message)
		}
		return &resp, nil
	}
	return nil, lastErr
}

// AmendCode replaces the code of a deployed contract.
func (c *Client) AmendCode(ctx context.Context, addr common.Address, content string, quota uint64) (*Response, error) {
	code, err := hex.DecodeString(parse.Remove0x(content))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "invalid contract code hex", err)
	}
	return c.sendAmend(ctx, typeAmendCode, append(addr.Bytes(), code...), quota)
}

// AmendABI replaces the stored ABI of a contract. The content is the raw
// ABI JSON text, not hex.
func (c *Client) AmendABI(ctx context.Context, addr common.Address, content string, quota uint64) (*Response, error) {
	return c.sendAmend(ctx, typeAmendABI, append(addr.Bytes(), []byte(content)...), quota)
}

// AmendSetH256KV writes key/value pairs into an account's 256-bit storage.
// kvHex is the hex-stripped concatenation of the pairs in input order.
func (c *Client) AmendSetH256KV(ctx context.Context, addr common.Address, kvHex string, quota uint64) (*Response, error) {
	kv, err := hex.DecodeString(kvHex)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "invalid key/value hex", err)
	}
	return c.sendAmend(ctx, typeAmendKVH256, append(addr.Bytes(), kv...), quota)
}

// AmendGetH256KV reads one 256-bit storage slot at a height. This is a
// plain read, no signing key required.
func (c *Client) AmendGetH256KV(ctx context.Context, addr common.Address, key common.Hash, height string) (*Response, error) {
	return c.Call(ctx, "getStorageAt", addr.Hex(), key.Hex(), height)
}

// AmendBalance overwrites an account balance.
func (c *Client) AmendBalance(ctx context.Context, addr common.Address, balance *uint256.Int, quota uint64) (*Response, error) {
	value := balance.Bytes32()
	return c.sendAmend(ctx, typeAmendBalance, append(addr.Bytes(), value[:]...), quota)
}

type transaction struct {
	ChainID uint32
	Nonce   string
	Quota   uint64
	To      common.Address
	Value   []byte
	Data    []byte
}

func (c *Client) sendAmend(ctx context.Context, typ byte, data []byte, quota uint64) (*Response, error) {
	if c.key == nil {
		return nil, clierr.New(clierr.CodeResolve, "amend operations require a signing key (--admin-private)")
	}
	if quota == 0 {
		quota = DefaultQuota
	}

	value := common.Hash{}
	value[common.HashLength-1] = typ
	tx := transaction{
		ChainID: c.chainID,
		Nonce:   newNonce(),
		Quota:   quota,
		To:      common.HexToAddress(AmendAddress),
		Value:   value.Bytes(),
		Data:    data,
	}
	payload, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode transaction", err)
	}
	sig, err := c.key.Sign(crypto.Keccak256(payload))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "sign transaction", err)
	}
	raw, err := rlp.EncodeToBytes([][]byte{payload, sig})
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode signed transaction", err)
	}
	return c.Call(ctx, "sendRawTransaction", "0x"+hex.EncodeToString(raw))
}

func newNonce() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func backoff(attempt int) time.Duration {
	base := 200 * time.Millisecond << (attempt - 1)
	if base > 2*time.Second {
		base = 2 * time.Second
	}
	jitter := time.Duration(mrand.Int63n(int64(base) / 4))
	return base + jitter
}

func mapNetError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return clierr.Wrap(clierr.CodeRemote, "request to node timed out", err)
	}
	return clierr.Wrap(clierr.CodeRemote, "node unreachable", err)
}
