// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rirmatch

import (
	"strings"

	"github.com/pkg/errors"
)

// Error kinds. All of them are terminal for the current run.
var (
	ErrInvalidFeatureVector       = errors.New("invalid feature vector")
	ErrInvalidWeightConfiguration = errors.New("invalid weight configuration")
	ErrEmptyPopulation            = errors.New("empty population")
	ErrNonTermination             = errors.New("non termination")
	ErrInvalidPreferences         = errors.New("invalid preferences")
)

// Error is a failure of a given kind, naming the offending identifiers.
type Error struct {
	Kind   error
	IDs    []string
	Detail string
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if len(e.IDs) > 0 {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(e.IDs, ", "))
		sb.WriteString("]")
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, detail string, ids ...string) *Error {
	return &Error{Kind: kind, IDs: ids, Detail: detail}
}

// NewError builds an *Error, for use by scoring and loading layers.
func NewError(kind error, detail string, ids ...string) error {
	return newError(kind, detail, ids...)
}

// ErrorIDs returns the identifiers carried by err, if any.
func ErrorIDs(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.IDs
	}
	return nil
}
