package http_client

import (
	"net"
	"net/http"
	"time"
)

// CreateHTTPClient returns the client used for every call to the remote
// service. The timeout bounds the whole exchange; hitting it surfaces as a
// network error to the caller.
func CreateHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tr := &http.Transport{
		MaxIdleConns:          20,
		MaxConnsPerHost:       20,
		IdleConnTimeout:       30 * time.Second,
		DisableCompression:    false,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	cli := &http.Client{
		Timeout:   timeout,
		Transport: tr,
	}

	return cli
}
