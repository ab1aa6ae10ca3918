package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Failure kinds surfaced by the pool. Callers classify with errors.Is.
var (
	// ErrRateLimited indicates a provider rate-limit signal; the credential
	// is placed on cooldown and rotation continues.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrTransient indicates a retryable provider error (network, 5xx).
	ErrTransient = errors.New("transient provider error")

	// ErrPermanent indicates an auth or otherwise non-retryable failure;
	// the credential is exhausted for the remainder of the run.
	ErrPermanent = errors.New("permanent provider error")

	// ErrPoolExhausted indicates no credential across any provider is
	// currently eligible. Fatal for the requesting unit only.
	ErrPoolExhausted = errors.New("provider pool exhausted")

	// ErrSchema indicates the provider responded but the response did not
	// match the requested schema, even after relaxed recovery.
	ErrSchema = errors.New("response does not match schema")
)

// APIError is an HTTP-level provider failure.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap classifies the status code into one of the pool's failure kinds so
// errors.Is works on APIError values.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusUnauthorized,
		e.StatusCode == http.StatusForbidden,
		e.StatusCode == http.StatusNotFound:
		return ErrPermanent
	case e.StatusCode == http.StatusRequestTimeout || e.StatusCode >= 500:
		return ErrTransient
	case e.StatusCode >= 400:
		return ErrPermanent
	default:
		return ErrTransient
	}
}

// parseAPIError builds an APIError from a non-2xx response, pulling a
// message out of the common {"error": {"message": ...}} and
// {"message": ...} body shapes.
func parseAPIError(provider string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	apiErr := &APIError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
	}

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			apiErr.RetryAfter = time.Duration(seconds) * time.Second
		}
	}

	var errResp struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Error.Message != "" {
			apiErr.Message = errResp.Error.Message
		} else if errResp.Message != "" {
			apiErr.Message = errResp.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}
