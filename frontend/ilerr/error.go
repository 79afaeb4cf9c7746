package ilerr

import (
	"errors"
	"fmt"
	"log/slog"
)

// Errors is a list of IleError that renders as a group when logged
type Errors struct {
	errs []IleError
}

func (r *Errors) With(err ...IleError) *Errors {
	if r == nil {
		return &Errors{errs: err}
	}
	r.errs = append(r.errs, err...)
	return r
}

func (r *Errors) Errors() []IleError {
	if r == nil {
		return nil
	}
	return r.errs
}

func (r *Errors) LogValue() slog.Value {
	var vals []slog.Attr
	for i, v := range r.Errors() {
		vals = append(vals, slog.Attr{
			Key: fmt.Sprint("e", i),
			Value: slog.GroupValue(
				slog.Attr{
					Key:   "msg",
					Value: slog.StringValue(FormatWithCode(v)),
				},
			),
		})
	}
	return slog.GroupValue(vals...)
}

// CodeOf returns the ErrCode of the first IleError in err's chain, or None
func CodeOf(err error) ErrCode {
	var ileErr IleError
	if errors.As(err, &ileErr) {
		return ileErr.Code()
	}
	return None
}

// As reports whether err is an IleError, and returns it
func As(err error) (IleError, bool) {
	var ileErr IleError
	ok := errors.As(err, &ileErr)
	return ileErr, ok
}
