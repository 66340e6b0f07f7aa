package devnode

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/scullring/pkg/ring"
	"github.com/haivivi/scullring/pkg/scull"
)

// Op names a request operation.
type Op string

const (
	OpWrite  Op = "write"
	OpRead   Op = "read"
	OpStatus Op = "status"
	OpQuery  Op = "query"
)

// Request is one client frame.
type Request struct {
	Op   Op     `msgpack:"op"`
	Max  int    `msgpack:"max,omitempty"`
	Data []byte `msgpack:"data,omitempty"`
	Cmd  int    `msgpack:"cmd,omitempty"`
}

// Code is the numeric outcome of a request.
type Code int

const (
	CodeOK Code = iota
	CodeWouldBlock
	CodeInterrupted
	CodeFault
	CodeNoSuchInstance
	CodeUnsupportedCommand
	CodeBadRequest
	CodeInternal
)

var codeNames = map[Code]string{
	CodeOK:                 "ok",
	CodeWouldBlock:         "would_block",
	CodeInterrupted:        "interrupted",
	CodeFault:              "fault",
	CodeNoSuchInstance:     "no_such_instance",
	CodeUnsupportedCommand: "unsupported_command",
	CodeBadRequest:         "bad_request",
	CodeInternal:           "internal",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// ErrBadRequest is returned for a frame the server could not decode or
// does not understand.
var ErrBadRequest = errors.New("devnode: bad request")

// ErrRemote is returned for a server failure with no local equivalent.
var ErrRemote = errors.New("devnode: remote error")

// Response is one server frame.
type Response struct {
	N       int          `msgpack:"n,omitempty"`
	Data    []byte       `msgpack:"data,omitempty"`
	Status  *ring.Status `msgpack:"status,omitempty"`
	Code    Code         `msgpack:"code,omitempty"`
	Message string       `msgpack:"message,omitempty"`
}

// codeOf maps a local error to its wire code.
func codeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ring.ErrWouldBlock):
		return CodeWouldBlock
	case errors.Is(err, ring.ErrInterrupted):
		return CodeInterrupted
	case errors.Is(err, ring.ErrFault):
		return CodeFault
	case errors.Is(err, scull.ErrNoSuchInstance), errors.Is(err, ring.ErrClosed):
		return CodeNoSuchInstance
	case errors.Is(err, scull.ErrUnsupportedCommand):
		return CodeUnsupportedCommand
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest
	default:
		return CodeInternal
	}
}

// sentinel returns the local error a code stands for.
func (c Code) sentinel() error {
	switch c {
	case CodeWouldBlock:
		return ring.ErrWouldBlock
	case CodeInterrupted:
		return ring.ErrInterrupted
	case CodeFault:
		return ring.ErrFault
	case CodeNoSuchInstance:
		return scull.ErrNoSuchInstance
	case CodeUnsupportedCommand:
		return scull.ErrUnsupportedCommand
	case CodeBadRequest:
		return ErrBadRequest
	default:
		return ErrRemote
	}
}

// Err returns nil for CodeOK, otherwise an error matching the sentinel of
// the code and carrying the server message.
func (r Response) Err() error {
	if r.Code == CodeOK {
		return nil
	}
	return fmt.Errorf("%w: %s", r.Code.sentinel(), r.Message)
}

// errorResponse builds the response for a failed request. A nil err gives a
// plain success carrying n.
func errorResponse(n int, err error) Response {
	if err == nil {
		return Response{N: n}
	}
	return Response{N: n, Code: codeOf(err), Message: err.Error()}
}

func marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
