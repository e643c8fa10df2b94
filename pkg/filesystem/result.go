package filesystem

import "fmt"

// Result holds exactly one of a value or an error. The zero Result is a
// success carrying the zero value.
type Result[T any] struct {
	value T
	err   error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail builds a failed Result. A nil err is replaced by an Other error so
// the Result never ends up holding neither variant.
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = Other("unspecified failure")
	}
	return Result[T]{err: err}
}

// From adapts a (value, error) pair. When err is non-nil the value is
// discarded.
func From[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(v)
}

// Status adapts an error-only call to Result[struct{}].
func Status(err error) Result[struct{}] {
	return From(struct{}{}, err)
}

func (r Result[T]) IsOk() bool {
	return r.err == nil
}

func (r Result[T]) IsErr() bool {
	return r.err != nil
}

// Err returns the failure, or nil on success.
func (r Result[T]) Err() error {
	return r.err
}

// Get returns the pair form.
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

// Unwrap returns the value and panics on a failed Result.
func (r Result[T]) Unwrap() T {
	if r.err != nil {
		panic(fmt.Sprintf("unwrap of failed result: %v", r.err))
	}
	return r.value
}

func (r Result[T]) UnwrapOr(def T) T {
	if r.err != nil {
		return def
	}
	return r.value
}

// Map transforms a successful value. A failure passes through untouched,
// kind and message included.
func Map[T, U any](r Result[T], f func(T) U) Result[U] {
	if r.err != nil {
		return Result[U]{err: r.err}
	}
	return Ok(f(r.value))
}

// AndThen chains a fallible step onto a successful value.
func AndThen[T, U any](r Result[T], f func(T) Result[U]) Result[U] {
	if r.err != nil {
		return Result[U]{err: r.err}
	}
	return f(r.value)
}

// MapErr rewrites a failure; a success passes through.
func MapErr[T any](r Result[T], f func(error) error) Result[T] {
	if r.err == nil {
		return r
	}
	return Fail[T](f(r.err))
}
