// Package validation provides common validation utilities for the gostream library.
package validation

import (
	"fmt"
	"reflect"

	gserrors "github.com/vnykmshr/gostream/pkg/common/errors"
)

// Number is the set of numeric types the range checks accept.
type Number interface {
	~int | ~int64 | ~float64
}

// Positive validates that value is greater than zero.
func Positive[N Number](module, field string, value N) error {
	if value <= 0 {
		return gserrors.NewValidationError(module, field, value, "must be positive").
			WithHint(fmt.Sprintf("set %s to a value greater than 0", field))
	}
	return nil
}

// NonNegative validates that value is zero or greater.
func NonNegative[N Number](module, field string, value N) error {
	if value < 0 {
		return gserrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint(fmt.Sprintf("set %s to 0 or a positive value", field))
	}
	return nil
}

// InRange validates that value lies in [lo, hi].
func InRange[N Number](module, field string, value, lo, hi N) error {
	if value < lo || value > hi {
		return gserrors.NewValidationError(module, field, value, "out of range").
			WithHint(fmt.Sprintf("use a value between %v and %v", lo, hi))
	}
	return nil
}

// NotNil validates that value is neither nil nor a typed nil pointer,
// map, slice, func, chan or interface.
func NotNil(module, field string, value interface{}) error {
	if isNil(value) {
		return gserrors.NewValidationError(module, field, nil, "is required").
			WithHint(fmt.Sprintf("%s cannot be nil", field))
	}
	return nil
}

// NotEmpty validates that a string is not empty.
func NotEmpty(module, field, value string) error {
	if value == "" {
		return gserrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint(fmt.Sprintf("set %s to a non-empty string", field))
	}
	return nil
}

// First returns the first non-nil error, so a constructor can list its
// checks in order.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
