package bridge

import "fmt"

// Call dispatches fn and returns its result with its static type.
func Call[T any](d Dispatcher, name string, fn func() (T, error)) (T, error) {
	v, err := d.Dispatch(name, Func(func() (any, error) {
		r, err := fn()
		return r, err
	}))
	return as[T](name, v, err)
}

// CallUntil dispatches fn and, in bridged mode, waits one tick at a time
// until done reports true for the value fn returned.
func CallUntil[T any](d Dispatcher, name string, fn func() (T, error), done func(T) (bool, error)) (T, error) {
	task := Until(
		func() (any, error) {
			r, err := fn()
			return r, err
		},
		func(result any) (bool, error) {
			r, err := as[T](name, result, nil)
			if err != nil {
				return false, err
			}
			return done(r)
		},
	)
	v, err := d.Dispatch(name, task)
	return as[T](name, v, err)
}

// Exec dispatches fn for its side effect only.
func Exec(d Dispatcher, name string, fn func() error) error {
	_, err := d.Dispatch(name, Func(func() (any, error) {
		return nil, fn()
	}))
	return err
}

// as converts a dispatched value back to T. A nil value yields T's zero
// value.
func as[T any](name string, v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	r, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T", ErrUnexpectedResult, name, v)
	}
	return r, nil
}
