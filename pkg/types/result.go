package types

import "encoding/json"

// Result is the structured outcome of a pipeline operation. Exactly one of
// value or err is meaningful; use Ok to tell them apart.
type Result[T any] struct {
	value T
	err   error
}

// OK wraps a successful value, which may legitimately be empty
func OK[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail wraps an error; a nil err is reported as a generic failure
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = ErrInvalidInput
	}
	return Result[T]{err: err}
}

// Ok reports whether the operation succeeded
func (r Result[T]) Ok() bool {
	return r.err == nil
}

// Value returns the payload and whether it is valid
func (r Result[T]) Value() (T, bool) {
	return r.value, r.err == nil
}

// Err returns the failure, nil on success
func (r Result[T]) Err() error {
	return r.err
}

type resultJSON[T any] struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
	Result  *T      `json:"result"`
}

// MarshalJSON renders {success, error, result}
func (r Result[T]) MarshalJSON() ([]byte, error) {
	out := resultJSON[T]{Success: r.err == nil}
	if r.err != nil {
		msg := r.err.Error()
		out.Error = &msg
	} else {
		v := r.value
		out.Result = &v
	}
	return json.Marshal(out)
}
