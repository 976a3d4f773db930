package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status values carried by every response
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrMalformed is returned when a frame does not hold a request object
var ErrMalformed = errors.New("malformed request")

// Request is a decoded request envelope. The whole payload is kept so
// handlers can bind their own fields.
type Request struct {
	Action string
	Token  string
	raw    json.RawMessage
}

type envelope struct {
	Action string `json:"action"`
	Token  string `json:"token,omitempty"`
}

// DecodeRequest parses a frame payload into a Request
func DecodeRequest(payload []byte) (*Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: payload must be a JSON object", ErrMalformed)
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Action == "" {
		return nil, fmt.Errorf("%w: action is required", ErrMalformed)
	}
	return &Request{Action: env.Action, Token: env.Token, raw: payload}, nil
}

// Bind decodes the request's action-specific fields into v
func (r *Request) Bind(v any) error {
	if err := json.Unmarshal(r.raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// EncodeRequest builds a request payload from an action, a token and
// an optional struct of action fields
func EncodeRequest(action, token string, fields any) ([]byte, error) {
	body := map[string]any{}
	if fields != nil {
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("request fields must encode as an object: %w", err)
		}
	}
	body["action"] = action
	if token != "" {
		body["token"] = token
	}
	return json.Marshal(body)
}

// Response is the envelope written back for every request
type Response struct {
	Status     string          `json:"status"`
	Data       json.RawMessage `json:"data,omitempty"`
	ErrorKind  string          `json:"error_kind,omitempty"`
	ErrorClass string          `json:"error_class,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// OK builds a success response
func OK(data any) (*Response, error) {
	resp := &Response{Status: StatusOK}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		resp.Data = raw
	}
	return resp, nil
}

// Fail builds an error response
func Fail(kind, class, message string) *Response {
	return &Response{Status: StatusError, ErrorKind: kind, ErrorClass: class, Message: message}
}

// Err returns the response as an error, or nil when it succeeded
func (r *Response) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	return &Error{Kind: r.ErrorKind, Class: r.ErrorClass, Message: r.Message}
}

// Decode unmarshals the response data into v. A nil v only checks for
// an error response.
func (r *Response) Decode(v any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if v == nil || len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// Error is an error response seen from the client side
type Error struct {
	Kind    string
	Class   string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind
	}
	return e.Kind + ": " + e.Message
}

// IsKind reports whether err is an error response of the given kind
func IsKind(err error, kind string) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}
