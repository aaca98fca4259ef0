package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
)

// =============================================================================
// ErrorType Tests
// =============================================================================

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{Unknown, "unknown"},
		{Network, "network"},
		{Timeout, "timeout"},
		{RateLimit, "rate_limit"},
		{Auth, "auth"},
		{NotFound, "not_found"},
		{ServerError, "server_error"},
		{ClientError, "client_error"},
		{Parse, "parse"},
		{GraphQL, "graphql"},
		{Cancelled, "cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.errType.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// ProbeError Tests
// =============================================================================

func TestProbeError_Error(t *testing.T) {
	err := NewProbeError(Network, "https://crm.example.com/rest/me", "request", "connection failed", nil)

	errStr := err.Error()
	if !containsAll(errStr, "network", "request", "https://crm.example.com/rest/me", "connection failed") {
		t.Errorf("Error() = %s, should contain relevant info", errStr)
	}
}

func TestProbeError_Error_WithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewProbeError(Network, "https://crm.example.com", "request", "connection failed", cause)

	if !containsAll(err.Error(), "underlying error") {
		t.Errorf("Error() = %s, should contain cause", err.Error())
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the cause")
	}
}

func TestProbeError_Is(t *testing.T) {
	err1 := NewProbeError(Network, "https://a.example.com", "request", "failed", nil)
	err2 := NewProbeError(Network, "https://b.example.com", "request", "reset", nil)
	err3 := NewProbeError(Timeout, "https://a.example.com", "request", "timeout", nil)

	if !errors.Is(err1, err2) {
		t.Error("Errors with same type should match")
	}
	if errors.Is(err1, err3) {
		t.Error("Errors with different types should not match")
	}
}

func TestNewStatusError_MessageCarriesStatus(t *testing.T) {
	err := NewStatusError(RateLimit, "https://crm.example.com/rest/me", 429, "slow down")

	if err.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", err.StatusCode)
	}
	if !strings.Contains(err.Error(), "status code 429") {
		t.Errorf("Error() = %s, want status code in message", err.Error())
	}
	if !strings.Contains(err.Error(), "slow down") {
		t.Errorf("Error() = %s, want detail in message", err.Error())
	}
}

// =============================================================================
// Categorize Tests
// =============================================================================

func TestCategorize_Nil(t *testing.T) {
	if Categorize(nil, "https://crm.example.com") != nil {
		t.Error("Categorize(nil) should return nil")
	}
}

func TestCategorize_ProbeError(t *testing.T) {
	original := NewParseError("https://crm.example.com", "decode", errors.New("bad json"))
	wrapped := fmt.Errorf("wrapped: %w", original)

	if got := Categorize(wrapped, "https://other.example.com"); got != original {
		t.Errorf("Categorize() = %v, want original ProbeError", got)
	}
}

func TestCategorize_ContextCanceled(t *testing.T) {
	got := Categorize(context.Canceled, "https://crm.example.com")
	if got.Type != Cancelled {
		t.Errorf("Type = %v, want cancelled", got.Type)
	}
}

func TestCategorize_DeadlineExceeded(t *testing.T) {
	got := Categorize(fmt.Errorf("get: %w", context.DeadlineExceeded), "https://crm.example.com")
	if got.Type != Timeout {
		t.Errorf("Type = %v, want timeout", got.Type)
	}
}

func TestCategorize_Network(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	got := Categorize(opErr, "https://crm.example.com")
	if got.Type != Network {
		t.Errorf("Type = %v, want network", got.Type)
	}
}

func TestCategorize_Unknown(t *testing.T) {
	got := Categorize(errors.New("something odd"), "https://crm.example.com")
	if got.Type != Unknown {
		t.Errorf("Type = %v, want unknown", got.Type)
	}
	if got.Message != "something odd" {
		t.Errorf("Message = %q", got.Message)
	}
}

func TestCategorizeHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
		isNil  bool
	}{
		{200, Unknown, true},
		{304, Unknown, true},
		{400, ClientError, false},
		{401, Auth, false},
		{403, Auth, false},
		{404, NotFound, false},
		{422, ClientError, false},
		{429, RateLimit, false},
		{500, ServerError, false},
		{503, ServerError, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			got := CategorizeHTTPStatus(tt.status, "https://crm.example.com", "")
			if tt.isNil {
				if got != nil {
					t.Errorf("CategorizeHTTPStatus(%d) = %v, want nil", tt.status, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("CategorizeHTTPStatus(%d) = nil", tt.status)
			}
			if got.Type != tt.want {
				t.Errorf("Type = %v, want %v", got.Type, tt.want)
			}
			if got.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.status)
			}
		})
	}
}

// =============================================================================
// Helper Predicate Tests
// =============================================================================

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed", NewStatusError(RateLimit, "u", 429, ""), true},
		{"plain 429", errors.New("Request failed with status code 429"), true},
		{"plain phrase", errors.New("Too Many Requests"), true},
		{"other status", NewStatusError(ServerError, "u", 500, ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimitError(tt.err); got != tt.want {
				t.Errorf("IsRateLimitError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsAuthError(t *testing.T) {
	if !IsAuthError(NewStatusError(Auth, "u", 401, "")) {
		t.Error("401 should be an auth error")
	}
	if IsAuthError(errors.New("401")) {
		t.Error("uncategorized errors are not auth errors")
	}
}

func TestIsUnreachable(t *testing.T) {
	if !IsUnreachable(NewNetworkError("u", "request", nil)) {
		t.Error("network errors are unreachable")
	}
	if !IsUnreachable(NewTimeoutError("u", "request", nil)) {
		t.Error("timeouts are unreachable")
	}
	if IsUnreachable(NewStatusError(ServerError, "u", 502, "")) {
		t.Error("an HTTP answer means the service was reached")
	}
}

func TestGetStatusCode(t *testing.T) {
	if got := GetStatusCode(fmt.Errorf("x: %w", NewStatusError(NotFound, "u", 404, ""))); got != 404 {
		t.Errorf("GetStatusCode() = %d, want 404", got)
	}
	if got := GetStatusCode(errors.New("plain")); got != 0 {
		t.Errorf("GetStatusCode() = %d, want 0", got)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
