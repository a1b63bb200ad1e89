package transport

import (
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not transient",
			err:  nil,
			want: false,
		},
		{
			name: "5xx status is transient",
			err:  &StatusError{StatusCode: 503},
			want: true,
		},
		{
			name: "500 status is transient",
			err:  &StatusError{StatusCode: 500},
			want: true,
		},
		{
			name: "408 request timeout is transient",
			err:  &StatusError{StatusCode: 408},
			want: true,
		},
		{
			name: "404 is permanent",
			err:  &StatusError{StatusCode: 404},
			want: false,
		},
		{
			name: "400 is permanent",
			err:  &StatusError{StatusCode: 400},
			want: false,
		},
		{
			name: "401 is permanent",
			err:  &StatusError{StatusCode: 401},
			want: false,
		},
		{
			name: "wrapped 5xx status is transient",
			err:  fmt.Errorf("push failed: %w", &StatusError{StatusCode: 502}),
			want: true,
		},
		{
			name: "net.Error is transient",
			err:  &net.DNSError{Err: "timeout", IsTimeout: true},
			want: true,
		},
		{
			name: "net.OpError is transient",
			err:  &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			want: true,
		},
		{
			name: "ErrInvalidMethod is permanent",
			err:  ErrInvalidMethod,
			want: false,
		},
		{
			name: "ErrInvalidURL is permanent",
			err:  ErrInvalidURL,
			want: false,
		},
		{
			name: "unclassified error is permanent",
			err:  errors.New("boom"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusError_Retryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{200, false},
		{404, false},
		{408, true},
		{499, false},
		{500, true},
		{503, true},
		{599, true},
	}
	for _, tt := range tests {
		e := &StatusError{StatusCode: tt.status}
		if got := e.Retryable(); got != tt.want {
			t.Errorf("StatusError{%d}.Retryable() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStatusError_Error(t *testing.T) {
	e := &StatusError{StatusCode: 503}
	if e.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
}
