// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package httperror centralizes the federator's error taxonomy and the
// fixed FDSN-conformant plain-text error body.
package httperror

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// Kind classifies an error for status-code mapping.
type Kind int

const (
	KindParser Kind = iota
	KindRoutingTooLarge
	KindBodyTooLarge
	KindStreamingTimeout
	KindNoContent
	KindRoutingFailure
	KindInternal
)

// Error is a federator-level error carrying the taxonomy Kind plus the
// short/long description rendered into the FDSN error body.
type Error struct {
	Kind  Kind
	Short string
	Long  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Short, e.Long) }

// New builds an *Error for the given Kind.
func New(kind Kind, short, long string) *Error {
	return &Error{Kind: kind, Short: short, Long: long}
}

// StatusCode maps a Kind to its user-visible HTTP status.
// nodataStatus is the user-configured no-content status (204 or 404),
// honored only for KindNoContent.
func StatusCode(kind Kind, nodataStatus int) int {
	switch kind {
	case KindParser:
		return http.StatusBadRequest
	case KindRoutingTooLarge, KindBodyTooLarge, KindStreamingTimeout:
		return http.StatusRequestEntityTooLarge
	case KindNoContent:
		if nodataStatus == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusNoContent
	case KindRoutingFailure, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteBody renders the fixed FDSN plain-text error block:
// "Error <code>: <short>", a long description, the documentation URI, the
// submitted URL, the submission time, and the service version.
func WriteBody(w io.Writer, statusCode int, err *Error, docURI, submittedURL, serviceVersion string, submittedAt time.Time) error {
	_, writeErr := fmt.Fprintf(w,
		"Error %d: %s\n\n%s\n\nDocumentation URI: %s\nSubmitted URL: %s\nSubmission time: %s\nService version: %s\n",
		statusCode, err.Short, err.Long, docURI, submittedURL,
		submittedAt.UTC().Format(time.RFC3339), serviceVersion)
	return writeErr
}
