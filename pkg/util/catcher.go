package util

import (
	"fmt"

	"github.com/pkg/errors"
)

// CatchErrs runs fn and turns a panic inside it into an error
func CatchErrs(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = errors.Wrap(v, "recovered")
			default:
				err = fmt.Errorf("recovered: %v", v)
			}
		}
	}()
	return fn()
}
