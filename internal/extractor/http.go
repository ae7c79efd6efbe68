package extractor

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// bytesReader adapts a byte slice to an io.Reader for request bodies.
func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// proxiedClient builds an http.Client that routes through proxy's endpoint,
// authenticating with its credentials via the proxy URL's userinfo.
func proxiedClient(proxy *Proxy, timeout time.Duration) *http.Client {
	proxyURL, err := url.Parse(proxy.Endpoint)
	if err != nil {
		return &http.Client{Timeout: timeout}
	}
	if user, pass, ok := strings.Cut(proxy.Credentials, ":"); ok {
		proxyURL.User = url.UserPassword(user, pass)
	} else if proxy.Credentials != "" {
		proxyURL.User = url.User(proxy.Credentials)
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		},
	}
}
