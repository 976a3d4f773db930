package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mcoot/gamehub/internal/protocol"
)

// DefaultTimeout bounds a call when the context has no deadline
const DefaultTimeout = 30 * time.Second

// Client speaks the framed request/response protocol over one
// connection. Calls are serialized.
type Client struct {
	mu           sync.Mutex
	conn         net.Conn
	token        string
	timeout      time.Duration
	maxFrameSize int
}

// Dial connects to a hub
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return New(conn), nil
}

// New wraps an established connection
func New(conn net.Conn) *Client {
	return &Client{
		conn:         conn,
		timeout:      DefaultTimeout,
		maxFrameSize: protocol.DefaultMaxFrameSize,
	}
}

// SetToken sets the session token sent with every call
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current session token
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends one action and returns the response envelope. Error
// responses are returned as a response, not as an error.
func (c *Client) Call(ctx context.Context, action string, fields any) (*protocol.Response, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	payload, err := protocol.EncodeRequest(action, token, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return c.Send(ctx, payload)
}

// Send writes a raw payload and reads the response
func (c *Client) Send(ctx context.Context, payload []byte) (*protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if err := protocol.WriteFrame(c.conn, payload); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	data, err := protocol.ReadFrame(c.conn, c.maxFrameSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp protocol.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// Do performs a call and decodes its data into result. Error responses
// come back as *protocol.Error.
func (c *Client) Do(ctx context.Context, action string, fields, result any) error {
	resp, err := c.Call(ctx, action, fields)
	if err != nil {
		return err
	}
	return resp.Decode(result)
}

// Register creates an account
func (c *Client) Register(ctx context.Context, name, password, role string) (*protocol.Account, error) {
	var account protocol.Account
	err := c.Do(ctx, protocol.ActionRegister, protocol.RegisterRequest{Name: name, Password: password, Role: role}, &account)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Login opens a session and keeps its token for later calls
func (c *Client) Login(ctx context.Context, name, password string) (*protocol.Session, error) {
	var session protocol.Session
	err := c.Do(ctx, protocol.ActionLogin, protocol.LoginRequest{Name: name, Password: password}, &session)
	if err != nil {
		return nil, err
	}
	c.SetToken(session.Token)
	return &session, nil
}
