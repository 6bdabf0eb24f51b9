package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-github/v57/github"
)

// AuthenticationError is returned when an installation access token could not be issued
type AuthenticationError struct {
	InstallationID string
	Err            error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("failed to authenticate installation %s: %v", e.InstallationID, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// IntegrationAPIError is returned for any non-2xx response to a data call
type IntegrationAPIError struct {
	Status int
	Body   string
	Err    error
}

func (e *IntegrationAPIError) Error() string {
	return fmt.Sprintf("github api returned %d: %s", e.Status, e.Body)
}

func (e *IntegrationAPIError) Unwrap() error {
	return e.Err
}

// MalformedResponseError is returned when a 2xx response lacks a required field
// or cannot be decoded into the expected shape
type MalformedResponseError struct {
	Field string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed github response %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("malformed github response: missing %q", e.Field)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// toAPIError converts go-github response errors into an IntegrationAPIError,
// and undecodable 2xx bodies into a MalformedResponseError.
// Errors that carry no HTTP response (network failures, cancelled contexts)
// are returned unchanged.
func toAPIError(err error) error {
	var (
		resp      *http.Response
		message   string
		errResp   *github.ErrorResponse
		rateErr   *github.RateLimitError
		abuseErr  *github.AbuseRateLimitError
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)

	switch {
	case errors.As(err, &typeErr):
		field := "body"
		if typeErr.Field != "" {
			field = typeErr.Field
		}
		return &MalformedResponseError{Field: field, Err: err}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &MalformedResponseError{Field: "body", Err: err}
	case errors.As(err, &errResp):
		resp, message = errResp.Response, errResp.Message
	case errors.As(err, &rateErr):
		resp, message = rateErr.Response, rateErr.Message
	case errors.As(err, &abuseErr):
		resp, message = abuseErr.Response, abuseErr.Message
	default:
		return err
	}

	if resp == nil {
		return err
	}

	body := message
	if resp.Body != nil {
		// CheckResponse repopulates the body after decoding the error message
		if data, readErr := io.ReadAll(resp.Body); readErr == nil && len(data) > 0 {
			body = string(data)
		}
	}

	return &IntegrationAPIError{Status: resp.StatusCode, Body: body, Err: err}
}
