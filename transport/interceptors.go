package transport

import (
	"net/http"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-Id"

// TagRequestID sets a fresh request id unless the caller already set one.
func TagRequestID(req *http.Request) error {
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}

	return nil
}

// LogUnauthorized only logs. There is no redirect or retry on 401.
func LogUnauthorized(resp *http.Response) error {
	if resp.StatusCode != http.StatusUnauthorized {
		return nil
	}

	method, path := "", ""
	if resp.Request != nil {
		method = resp.Request.Method
		path = resp.Request.URL.Path
	}
	log.Errorf("Unauthorized access: %s %s", method, path)

	return nil
}

// BearerToken returns a request interceptor adding an Authorization header.
// An empty token leaves requests untouched.
func BearerToken(token string) RequestInterceptor {
	return func(req *http.Request) error {
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return nil
	}
}
