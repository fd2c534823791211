package reliability

import (
	"errors"
	"net"
	"testing"

	"github.com/gorilla/websocket"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryableHTTPStatus(code) {
			t.Fatalf("IsRetryableHTTPStatus(%d) = false, want true", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404} {
		if IsRetryableHTTPStatus(code) {
			t.Fatalf("IsRetryableHTTPStatus(%d) = true, want false", code)
		}
	}
}

func TestIsTransientConnError(t *testing.T) {
	if IsTransientConnError(nil) {
		t.Fatalf("nil should not be transient")
	}
	if IsTransientConnError(&websocket.CloseError{Code: websocket.CloseNormalClosure}) {
		t.Fatalf("normal closure should not be transient")
	}
	if !IsTransientConnError(&websocket.CloseError{Code: websocket.CloseAbnormalClosure}) {
		t.Fatalf("abnormal closure should be transient")
	}
	if !IsTransientConnError(net.ErrClosed) {
		t.Fatalf("net.ErrClosed should be transient")
	}
	if IsTransientConnError(errors.New("protocol violation")) {
		t.Fatalf("generic error should not be transient")
	}
}
