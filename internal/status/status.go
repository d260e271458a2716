// Package status defines the codes a long-poll reports and the response
// record that carries them back to the caller.
package status

import (
	"encoding/json"
	"fmt"
)

// Code is the cause attached to a long-poll response. Negative codes only
// ever appear in terminal responses; positive codes below 10 are commands
// that ended a transaction; 11 and 12 describe a session's work state.
type Code int

const (
	AlreadyRunning     Code = -3 // poll requested while a transaction is active
	Dead               Code = -2 // key's lifecycle ended or never started
	NoData             Code = -1 // observe produced no value
	None               Code = 0
	Destroy            Code = 1 // explicit external stop
	LifetimeExpired    Code = 2 // lifecycle timer stop
	TransactionTimeout Code = 3
	Rest               Code = 11
	Working            Code = 12
)

var messages = map[Code]string{
	AlreadyRunning:     "ALREADY_WORKING",
	Dead:               "DEAD",
	NoData:             "NO_DATA",
	None:               "UNDEFINED",
	Destroy:            "DESTROY_COMMAND",
	LifetimeExpired:    "SYSTEM_COMMAND",
	TransactionTimeout: "TRANSACTION_COMMAND",
	Rest:               "REST",
	Working:            "WORKING",
}

// Message returns the fixed message for c. Asking for a code outside the
// table is a programming error and panics.
func Message(c Code) string {
	m, ok := messages[c]
	if !ok {
		panic(fmt.Sprintf("status: no message for code %d", int(c)))
	}
	return m
}

// Message is shorthand for Message(c).
func (c Code) Message() string {
	return Message(c)
}

// Valid reports whether c is in the message table.
func (c Code) Valid() bool {
	_, ok := messages[c]
	return ok
}

func (c Code) String() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

func (c Code) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(c))
}

func (c *Code) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if !Code(n).Valid() {
		return fmt.Errorf("status: unknown code %d", n)
	}
	*c = Code(n)
	return nil
}

// Response is the result of one poll. Message always mirrors StatusCode.
type Response[T any] struct {
	Updated    bool   `json:"updated"`
	StatusCode Code   `json:"statusCode"`
	Message    string `json:"message"`
	Data       T      `json:"data"`
}

// NewResponse returns an un-updated response carrying code and data.
func NewResponse[T any](code Code, data T) Response[T] {
	return Response[T]{
		StatusCode: code,
		Message:    Message(code),
		Data:       data,
	}
}

// WithStatus returns a copy of r with its status replaced.
func (r Response[T]) WithStatus(code Code) Response[T] {
	r.StatusCode = code
	r.Message = Message(code)
	return r
}

func (r Response[T]) String() string {
	return fmt.Sprintf("{updated=%t, message=%s, status=%d, data=%v}",
		r.Updated, r.Message, int(r.StatusCode), r.Data)
}
