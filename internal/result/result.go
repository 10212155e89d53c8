// Package result provides the tagged Result type used at every service
// boundary in place of exceptions.
package result

// Result holds either a success value of type T or an *Error. A zero
// Result is a failure with a nil Error; always construct through Ok or
// Fail.
type Result[T any] struct {
	value T
	err   *Error
	ok    bool
}

// Ok wraps a success value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Fail wraps a typed error.
func Fail[T any](err *Error) Result[T] {
	return Result[T]{err: err, ok: false}
}

// IsOk reports whether the result is a success.
func (r Result[T]) IsOk() bool { return r.ok }

// IsErr reports whether the result is a failure.
func (r Result[T]) IsErr() bool { return !r.ok }

// Value returns the success value and true, or the zero value and
// false if the result is a failure.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.ok
}

// Must returns the success value, panicking if the result is a
// failure. Intended for call sites that have already checked IsOk, or
// tests.
func (r Result[T]) Must() T {
	if !r.ok {
		panic(r.err)
	}
	return r.value
}

// Err returns the failure's error, or nil if the result is a success.
func (r Result[T]) Err() *Error {
	return r.err
}

// Map transforms a success value, passing through any failure
// unchanged.
func Map[T, U any](r Result[T], f func(T) U) Result[U] {
	if r.IsErr() {
		return Fail[U](r.err)
	}
	return Ok(f(r.value))
}

// FlatMap chains a Result-returning function onto a success value,
// passing through any failure unchanged.
func FlatMap[T, U any](r Result[T], f func(T) Result[U]) Result[U] {
	if r.IsErr() {
		return Fail[U](r.err)
	}
	return f(r.value)
}

// MapError transforms the error of a failure, passing through any
// success unchanged.
func (r Result[T]) MapError(f func(*Error) *Error) Result[T] {
	if r.IsOk() {
		return r
	}
	return Fail[T](f(r.err))
}

// AndThen returns other if r is a success, else r's failure.
func AndThen[T, U any](r Result[T], other Result[U]) Result[U] {
	if r.IsErr() {
		return Fail[U](r.err)
	}
	return other
}

// CollectResults turns a slice of Results into a single Result of a
// slice, failing on the first error encountered.
func CollectResults[T any](results []Result[T]) Result[[]T] {
	values := make([]T, 0, len(results))
	for _, r := range results {
		if r.IsErr() {
			return Fail[[]T](r.err)
		}
		values = append(values, r.value)
	}
	return Ok(values)
}
