package crawler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/nao1215/sitecorpus/internal/policy"
)

// maxRedirects is the number of redirects followed before the last
// response is returned as-is.
const maxRedirects = 10

// TransportOptions configures the HTTP client used by HTTPFetcher.
type TransportOptions struct {
	// Timeout bounds a whole request including reading the body.
	Timeout time.Duration

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	// Empty means direct connections.
	ProxyAddress string
}

// NewHTTPClient creates an HTTP client for crawling.
//
// Transparent gzip is disabled; HTTPFetcher negotiates and decodes content
// encodings itself. Cookies persist across pages and redirects are
// followed up to maxRedirects, within the origin of the request.
func NewHTTPClient(opts TransportOptions) (*http.Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
	}

	if opts.ProxyAddress != "" {
		dial, err := socks5DialContext(opts.ProxyAddress)
		if err != nil {
			return nil, err
		}
		transport.DialContext = dial
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
		Jar:       jar,
		CheckRedirect: checkRedirect,
	}, nil
}

// checkRedirect follows redirects within the origin of the first request.
// A redirect to another origin fails the request, since the body would
// otherwise be stored under a URL of the crawled site.
func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return http.ErrUseLastResponse
	}
	if len(via) > 0 && !policy.SameOrigin(via[0].URL, req.URL) {
		return fmt.Errorf("%w: %s", ErrCrossOriginRedirect, req.URL.Redacted())
	}
	return nil
}

// socks5DialContext returns a DialContext function that routes connections
// through the SOCKS5 proxy at address.
func socks5DialContext(address string) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	if !isValidProxyAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, address)
	}

	dialer, err := proxy.SOCKS5("tcp", address, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}

	// proxy.Dialer has no context support. If ctx is cancelled the
	// goroutine returns early but the dial attempt may continue briefly.
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)
		go func() {
			conn, err := dialer.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()

		select {
		case result := <-resultCh:
			return result.conn, result.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, nil
}

// isValidProxyAddress checks if the address is in "host:port" form with a
// port between 1 and 65535. IPv6 literals must be bracketed.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	if strings.ContainsAny(host, "/ ") {
		return false
	}
	for _, c := range port {
		if c < '0' || c > '9' {
			return false
		}
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return portNum >= 1 && portNum <= 65535
}
