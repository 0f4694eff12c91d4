package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/posledger/pkg/errors"
)

const maxBodyBytes = 1 << 20

// Envelope is the {success, data, error} wrapper the sales backend puts
// around every response body. Listings add a sibling pagination block.
type Envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Pagination json.RawMessage `json:"pagination,omitempty"`
	Error      *EnvelopeError  `json:"error,omitempty"`
}

// EnvelopeError accepts both shapes the backend emits for "error": a bare
// string or a {code, message} object.
type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *EnvelopeError) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &e.Message)
	}
	type plain EnvelopeError
	return json.Unmarshal(b, (*plain)(e))
}

// DecodeEnvelope reads a 2xx response body, checks the success flag and
// returns the raw data payload. The body is fully consumed and closed.
func DecodeEnvelope(resp *http.Response, serviceName string) (*Envelope, error) {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", serviceName, err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: decode envelope: %w", serviceName, err)
	}
	if !env.Success {
		msg := "request not successful"
		code := ""
		if env.Error != nil {
			msg, code = env.Error.Message, env.Error.Code
		}
		return nil, apperrors.Unprocessable(code, fmt.Sprintf("%s: %s", serviceName, msg))
	}
	return &env, nil
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError. The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var env Envelope
	if json.Unmarshal(bodyBytes, &env) == nil && env.Error != nil {
		return mapDownstreamError(resp.StatusCode, env.Error.Code, env.Error.Message, serviceName)
	}

	return mapDownstreamError(resp.StatusCode, "", string(bytes.TrimSpace(bodyBytes)), serviceName)
}

func mapDownstreamError(status int, code, message, serviceName string) error {
	qualifiedMsg := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(serviceName, message)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(qualifiedMsg)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualifiedMsg)
	case status == http.StatusUnprocessableEntity:
		return apperrors.Unprocessable(code, qualifiedMsg)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualifiedMsg)
	case status >= 500:
		return fmt.Errorf("%s server error (%d/%s): %s", serviceName, status, code, message)
	default:
		if code == "" {
			code = http.StatusText(status)
		}
		return &apperrors.AppError{
			Code:    code,
			Message: qualifiedMsg,
			Status:  status,
		}
	}
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
