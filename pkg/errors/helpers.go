// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"errors"
	"fmt"
)

// Wrap creates a new error that wraps the given error with additional context.
// If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf creates a new error that wraps the given error with formatted context.
// If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target type,
// and if one is found, sets target to that error value and returns true.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// IsAuthDenied reports whether err is an authentication denial.
func IsAuthDenied(err error) bool {
	var authErr *AuthDeniedError
	return errors.As(err, &authErr)
}

// IsRefreshUnavailable reports whether err is a failed credential refresh.
func IsRefreshUnavailable(err error) bool {
	var refreshErr *RefreshUnavailableError
	return errors.As(err, &refreshErr)
}

// Kind returns a machine-distinguishable kind string for a user-visible
// failure, suitable for structured tool results.
func Kind(err error) string {
	var (
		authErr    *AuthDeniedError
		refreshErr *RefreshUnavailableError
		upErr      *UpstreamError
		cfgErr     *ConfigurationError
		nfErr      *NotFoundError
		toErr      *TimeoutError
	)
	switch {
	case errors.As(err, &authErr):
		return "auth_denied"
	case errors.As(err, &refreshErr):
		return "refresh_unavailable"
	case errors.As(err, &upErr):
		return "upstream_" + string(upErr.Kind)
	case errors.As(err, &cfgErr):
		return "configuration_error"
	case errors.As(err, &nfErr):
		return "not_found"
	case errors.As(err, &toErr):
		return "timeout"
	default:
		return "internal_error"
	}
}
