package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/kailas-cloud/searchcore/internal/domain"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
		{"timeout", &net.DNSError{Err: "i/o timeout", IsTimeout: true}, true},
		{"eof", fmt.Errorf("read: %w", io.EOF), true},
		{"caller cancelled", fmt.Errorf("perform: %w", context.Canceled), false},
		{"caller deadline", context.DeadlineExceeded, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(nil, tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRejected(t *testing.T) {
	bad := fmt.Errorf("search: %w", &ResponseError{Status: http.StatusBadRequest, Type: "parsing_exception", Reason: "unknown query [common]"})
	err := rejected("CommonTerms", bad)
	var qe *domain.QueryError
	if !errors.As(err, &qe) || qe.Node != "CommonTerms" {
		t.Fatalf("err = %v, want QueryError on CommonTerms", err)
	}

	forbidden := &ResponseError{Status: http.StatusForbidden, Type: "security_exception"}
	if err := rejected("Term", forbidden); errors.Is(err, domain.ErrQuery) {
		t.Errorf("403 classified as query error: %v", err)
	}
}
