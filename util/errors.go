package util

import "errors"

// ErrorAs reports whether any error in err's chain is of type T.
func ErrorAs[T error](err error) bool {
	var it T
	return errors.As(err, &it)
}
