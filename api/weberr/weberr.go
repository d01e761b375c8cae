// Package weberr decorates handler errors with the response a client gets
// and the fields the error log carries.
package weberr

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
)

type Opt func(error) error

func Wrap(err error, opts ...Opt) error {
	for _, opt := range opts {
		err = opt(err)
	}
	return err
}

func WithResponse(body interface{}, status int) Opt {
	return func(err error) error {
		return &responseError{error: err, body: body, status: status}
	}
}

func WithFields(fields logrus.Fields) Opt {
	return func(err error) error {
		return &fieldsError{error: err, fields: fields}
	}
}

// Response finds the outermost response attached to err.
func Response(err error) (body interface{}, status int, ok bool) {
	var re *responseError
	if errors.As(err, &re) {
		return re.body, re.status, true
	}
	return nil, 0, false
}

// Fields merges the log fields attached anywhere in err's chain, outer
// values win.
func Fields(err error) (logrus.Fields, bool) {
	var out logrus.Fields
	for err != nil {
		var fe *fieldsError
		if !errors.As(err, &fe) {
			break
		}
		if out == nil {
			out = logrus.Fields{}
		}
		for k, v := range fe.fields {
			if _, set := out[k]; !set {
				out[k] = v
			}
		}
		err = fe.error
	}
	return out, out != nil
}

// Status reports the status code a handler error will be answered with.
func Status(err error) int {
	if _, status, ok := Response(err); ok {
		return status
	}
	return http.StatusInternalServerError
}

type responseError struct {
	error
	body   interface{}
	status int
}

func (e *responseError) Unwrap() error { return e.error }

type fieldsError struct {
	error
	fields logrus.Fields
}

func (e *fieldsError) Unwrap() error { return e.error }
