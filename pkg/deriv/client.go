package deriv

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Client is a request/response wrapper over the brokerage websocket JSON
// API. One connection, one reader goroutine; concurrent calls are matched
// to responses by req_id.
type Client struct {
	Endpoint string
	AppID    string
	Token    string

	// RedialAttempts bounds one reconnect sequence.
	RedialAttempts int

	limiter  *rate.Limiter
	redialMu sync.Mutex // serializes reconnect sequences

	mu      sync.Mutex // guards conn, pending, nextID, authorized
	conn    *websocket.Conn
	pending map[int64]chan rawResponse
	nextID  int64
	authed  bool
}

type rawResponse struct {
	payload json.RawMessage
	err     error
}

// apiError is the error object embedded in responses.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("deriv: %s (%s)", e.Message, e.Code)
}

// NewClient builds a client; no connection is made until the first call.
func NewClient(endpoint, appID, token string) *Client {
	return &Client{
		Endpoint:       endpoint,
		AppID:          appID,
		Token:          token,
		RedialAttempts: 5,
		// The public API allows short bursts; keep a conservative pace.
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 4),
		pending: make(map[int64]chan rawResponse),
	}
}

// Connect dials the websocket and authorizes when a token is configured.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	url := fmt.Sprintf("%s?app_id=%s", c.Endpoint, c.AppID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("deriv: dial %s: %w", c.Endpoint, err)
	}
	c.conn = conn
	c.authed = false
	c.mu.Unlock()

	go c.readLoop(conn)

	if c.Token != "" {
		if err := c.authorize(ctx); err != nil {
			c.Close()
			return err
		}
	}
	return nil
}

// Reconnect tears down the current connection and redials with backoff.
func (c *Client) Reconnect(ctx context.Context) error {
	c.Close()
	attempts := c.RedialAttempts
	if attempts <= 0 {
		attempts = 5
	}
	backoff := time.Second
	for attempt := 1; ; attempt++ {
		err := c.Connect(ctx)
		if err == nil {
			log.Printf("deriv: reconnected after %d attempt(s)", attempt)
			return nil
		}
		if attempt >= attempts {
			return fmt.Errorf("deriv: reconnect failed: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 16*time.Second {
			backoff *= 2
		}
	}
}

// ensureConnected redials a dropped connection before a call goes out.
// Concurrent callers share one reconnect sequence instead of racing dials.
func (c *Client) ensureConnected(ctx context.Context) error {
	c.redialMu.Lock()
	defer c.redialMu.Unlock()
	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	if connected {
		return nil
	}
	log.Printf("deriv: connection lost, redialing")
	return c.Reconnect(ctx)
}

// Close shuts the connection and fails all in-flight calls.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	for id, ch := range c.pending {
		ch <- rawResponse{err: fmt.Errorf("deriv: connection closed")}
		delete(c.pending, id)
	}
	c.authed = false
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.failAll(conn, err)
			return
		}
		var envelope struct {
			ReqID int64     `json:"req_id"`
			Error *apiError `json:"error"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			log.Printf("deriv: bad frame: %v", err)
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[envelope.ReqID]
		if ok {
			delete(c.pending, envelope.ReqID)
		}
		c.mu.Unlock()
		if !ok {
			continue // subscription noise or late reply
		}
		if envelope.Error != nil {
			ch <- rawResponse{err: envelope.Error}
			continue
		}
		ch <- rawResponse{payload: data}
	}
}

func (c *Client) failAll(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return // already replaced
	}
	for id, ch := range c.pending {
		ch <- rawResponse{err: fmt.Errorf("deriv: read loop ended: %w", cause)}
		delete(c.pending, id)
	}
	c.conn = nil
	c.authed = false
}

// call sends one request and waits for the matching response. A dropped
// connection triggers one bounded reconnect sequence before the call fails.
func (c *Client) call(ctx context.Context, req map[string]any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return fmt.Errorf("deriv: not connected")
	}
	c.nextID++
	id := c.nextID
	req["req_id"] = id
	ch := make(chan rawResponse, 1)
	c.pending[id] = ch
	err := conn.WriteJSON(req)
	c.mu.Unlock()

	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("deriv: write: %w", err)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case resp := <-ch:
		if resp.err != nil {
			return resp.err
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(resp.payload, out)
	}
}

func (c *Client) authorize(ctx context.Context) error {
	var resp struct {
		Authorize struct {
			LoginID string `json:"loginid"`
		} `json:"authorize"`
	}
	if err := c.call(ctx, map[string]any{"authorize": c.Token}, &resp); err != nil {
		return fmt.Errorf("deriv: authorize: %w", err)
	}
	c.mu.Lock()
	c.authed = true
	c.mu.Unlock()
	log.Printf("deriv: authorized as %s", resp.Authorize.LoginID)
	return nil
}
