package ilerr

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatWithCode(t *testing.T) {
	err := New(NewTypeMismatch{Expected: "i32", Found: "bool"})
	assert.Equal(t, "(E010) type mismatch: expected 'i32', but found 'bool'", FormatWithCode(err))
	assert.NotEmpty(t, err.getStack())
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("checking main: %w", New(NewMissingRegion{Function: "pick", Inputs: 2}))
	assert.Equal(t, MissingRegion, CodeOf(err))

	ileErr, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, MissingRegion, ileErr.Code())

	assert.Equal(t, None, CodeOf(fmt.Errorf("plain")))
	_, ok = As(nil)
	assert.False(t, ok)
}

func TestErrorsLogValue(t *testing.T) {
	var errs *Errors
	assert.Empty(t, errs.Errors())
	errs = errs.With(New(NewAliasNotFound{Name: "Foo"}), New(NewCyclicAlias{Name: "Bar"}))
	assert.Len(t, errs.Errors(), 2)

	buf := &bytes.Buffer{}
	slog.New(slog.NewTextHandler(buf, nil)).Info("done", "errors", errs)
	assert.Contains(t, buf.String(), "errors.e0.msg=")
	assert.Contains(t, buf.String(), "(E006)")
	assert.Contains(t, buf.String(), "errors.e1.msg=")
}
