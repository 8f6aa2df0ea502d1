package venue

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the venue's production REST endpoint.
const DefaultBaseURL = "https://api.exchange.coinbase.com"

// Client is an authenticated REST client for the venue. Requests are signed
// with HMAC-SHA256 over timestamp+method+path+body, keyed by the API secret.
type Client struct {
	baseURL    string
	key        string
	secret     string
	passphrase string
	httpClient *http.Client

	// now is stubbed in tests so signatures are reproducible.
	now func() time.Time
}

// NewClient creates a venue client from a profile's credentials. An empty
// baseURL selects the production endpoint.
func NewClient(key, secret, passphrase, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		key:        key,
		secret:     secret,
		passphrase: passphrase,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// APIError is a non-2xx response from the venue.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue: api error %d: %s", e.Status, e.Message)
}

// IsAuthError reports whether err means the venue rejected our credentials.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

type account struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
}

// GetBalances fetches the available balance of every account at the venue.
func (c *Client) GetBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	var accounts []account
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, &accounts); err != nil {
		return nil, err
	}

	balances := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		d, err := decimal.NewFromString(a.Available)
		if err != nil {
			return nil, fmt.Errorf("venue: bad balance %q for %s: %w", a.Available, a.Currency, err)
		}
		balances[a.Currency] = d
	}
	return balances, nil
}

type bookResponse struct {
	Bids [][]json.RawMessage `json:"bids"`
	Asks [][]json.RawMessage `json:"asks"`
}

// GetOrderBook fetches the best bid/ask (level 1 book) for a product.
func (c *Client) GetOrderBook(ctx context.Context, productID string) (OrderBook, error) {
	var book bookResponse
	path := fmt.Sprintf("/products/%s/book?level=1", productID)
	if err := c.do(ctx, http.MethodGet, path, nil, &book); err != nil {
		return OrderBook{}, err
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return OrderBook{}, fmt.Errorf("venue: empty order book for %s", productID)
	}

	bid, err := bookPrice(book.Bids[0])
	if err != nil {
		return OrderBook{}, fmt.Errorf("venue: %s best bid: %w", productID, err)
	}
	ask, err := bookPrice(book.Asks[0])
	if err != nil {
		return OrderBook{}, fmt.Errorf("venue: %s best ask: %w", productID, err)
	}
	return OrderBook{BestBid: bid, BestAsk: ask}, nil
}

// Book entries are [price, size, num_orders] with the price as a string.
func bookPrice(entry []json.RawMessage) (decimal.Decimal, error) {
	if len(entry) == 0 {
		return decimal.Decimal{}, fmt.Errorf("empty book entry")
	}
	var price string
	if err := json.Unmarshal(entry[0], &price); err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(price)
}

type orderAck struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SubmitOrder places one order. It is never retried by this client.
func (c *Client) SubmitOrder(ctx context.Context, o Order) (Ack, error) {
	payload := map[string]string{
		"type":       o.Kind,
		"side":       o.Side,
		"product_id": o.ProductID,
	}
	if o.ClientOID != "" {
		payload["client_oid"] = o.ClientOID
	}
	if o.Size != "" {
		payload["size"] = o.Size
	}
	if o.Funds != "" {
		payload["funds"] = o.Funds
	}
	if o.Price != "" {
		payload["price"] = o.Price
	}
	for k, v := range o.Extra {
		payload[k] = v
	}

	var ack orderAck
	if err := c.do(ctx, http.MethodPost, "/orders", payload, &ack); err != nil {
		return Ack{}, err
	}
	return Ack{OrderID: ack.ID, Status: ack.Status}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("venue: marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("venue: new request: %w", err)
	}

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	sig, err := c.sign(timestamp, method, path, bodyBytes)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("CB-ACCESS-KEY", c.key)
	req.Header.Set("CB-ACCESS-SIGN", sig)
	req.Header.Set("CB-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("CB-ACCESS-PASSPHRASE", c.passphrase)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("venue: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("venue: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiMsg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &apiMsg)
		if apiMsg.Message == "" {
			apiMsg.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: apiMsg.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("venue: decode %s %s response: %w", method, path, err)
	}
	return nil
}

// The signature covers the request path including query string.
func (c *Client) sign(timestamp, method, path string, body []byte) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(c.secret)
	if err != nil {
		return "", fmt.Errorf("venue: api secret is not base64: %w", err)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp + method + path))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
