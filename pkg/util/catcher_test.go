package util

import (
	"errors"
	"testing"

	"gotest.tools/assert"
)

func TestCatchErrs(t *testing.T) {
	err := CatchErrs(func() error { return nil })
	assert.NilError(t, err)
	err = CatchErrs(func() error { return errors.New("plain") })
	assert.Error(t, err, "plain")
	err = CatchErrs(func() error { panic(errors.New("boom")) })
	assert.Error(t, err, "recovered: boom")
	err = CatchErrs(func() error { panic("hci down") })
	assert.Error(t, err, "recovered: hci down")
}
