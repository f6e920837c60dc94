package probe

import (
	"io"
	"net/http"
	"time"
)

var defaultHTTPClient = &http.Client{Timeout: 2 * time.Second}

// HTTPChecker issues a plain GET against the service's health URL. Any
// response received without a connection-level error means the service is
// listening; the status code is deliberately not inspected. The probed
// servers may answer non-2xx while already usable, and tightening this to
// 2xx would change observable timeout behavior against them.
type HTTPChecker struct {
	URL    string
	Client *http.Client
}

func (c *HTTPChecker) Check() (bool, error) {
	client := c.Client
	if client == nil {
		client = defaultHTTPClient
	}
	resp, err := client.Get(c.URL)
	if err != nil {
		// Not listening yet; the caller's deadline bounds the retries.
		return false, nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	return true, nil
}

func (c *HTTPChecker) Describe() string { return "http:" + c.URL }
