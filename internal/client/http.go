package client

/*
adscheck — ads.txt / app-ads.txt validation tool in Go
Copyright (C) 2026  adscheck authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

/*
Package client builds the HTTP clients used to fetch authorization files from
publisher sites. It provides two flavors: a verifying client for regular
fetches and a non-verifying one used for a single retry after a certificate
validation failure.

Clients are constructed once and never mutated afterwards, so they can be
shared freely by any number of concurrent workers. There is deliberately no
package-level shared instance; callers own the clients they create.
*/

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"
)

// Defaults applied by Config.withDefaults for zero fields.
const (
	// DefaultRequestTimeout bounds a complete request: connect, TLS,
	// redirects, and reading the full body.
	DefaultRequestTimeout = 10 * time.Second
	// DefaultDialTimeout is the maximum time a dial will wait for a
	// connect to complete.
	DefaultDialTimeout = 5 * time.Second
	// DefaultKeepAliveTimeout is the interval between keep-alive probes
	// for active network connections.
	DefaultKeepAliveTimeout = 60 * time.Second
	// DefaultIdleConnTimeout is how long an idle keep-alive connection
	// remains open before closing itself.
	DefaultIdleConnTimeout = 90 * time.Second
	// DefaultMaxIdleConns caps idle keep-alive connections across all hosts.
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost caps idle keep-alive connections per host.
	// Tasks for the same site run back to back, so a small per-host pool
	// suffices.
	DefaultMaxIdleConnsPerHost = 4
	// DefaultMaxRedirects is the number of redirects followed before a
	// fetch is abandoned.
	DefaultMaxRedirects = 5

	// DefaultUserAgent mimics a desktop browser. Several large publishers
	// front their ads.txt with bot-filtering CDNs that return 403 to
	// unknown agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// DefaultAccept prefers plain text but tolerates the HTML content
	// types misconfigured servers hand back.
	DefaultAccept = "text/plain,text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// ErrTooManyRedirects is returned (wrapped in a *url.Error) when a fetch
// exceeds the configured redirect budget.
var ErrTooManyRedirects = errors.New("too many redirects")

// Config holds the tunables for client construction. The zero value is
// usable; empty fields fall back to the package defaults.
type Config struct {
	// RequestTimeout is the timeout for the entire HTTP request,
	// including connection time, all redirects, and reading the body.
	RequestTimeout time.Duration
	// DialTimeout is the maximum duration for establishing a new connection.
	DialTimeout time.Duration
	// KeepAliveTimeout specifies the keep-alive period for an active
	// network connection.
	KeepAliveTimeout time.Duration
	// IdleConnTimeout is the maximum time an idle keep-alive connection
	// remains idle before closing itself.
	IdleConnTimeout time.Duration
	// MaxIdleConns caps idle keep-alive connections across all hosts.
	MaxIdleConns int
	// MaxIdleConnsPerHost caps idle keep-alive connections per host.
	MaxIdleConnsPerHost int
	// MaxRedirects is the number of redirects followed before giving up.
	MaxRedirects int
	// UserAgent is sent on every request built with NewRequest.
	UserAgent string
	// Accept is sent on every request built with NewRequest.
	Accept string
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:      DefaultRequestTimeout,
		DialTimeout:         DefaultDialTimeout,
		KeepAliveTimeout:    DefaultKeepAliveTimeout,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		MaxRedirects:        DefaultMaxRedirects,
		UserAgent:           DefaultUserAgent,
		Accept:              DefaultAccept,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RequestTimeout == 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = d.KeepAliveTimeout
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = d.IdleConnTimeout
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = d.MaxIdleConns
	}
	if c.MaxIdleConnsPerHost == 0 {
		c.MaxIdleConnsPerHost = d.MaxIdleConnsPerHost
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = d.MaxRedirects
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.Accept == "" {
		c.Accept = d.Accept
	}
	return c
}

// New returns a certificate-verifying HTTP client built from cfg.
// The returned client must not be mutated after construction.
func New(cfg Config) *http.Client {
	return build(cfg.withDefaults(), false)
}

// NewInsecure returns a client identical to New's except that server
// certificates are not verified. It exists solely for the one-shot retry
// after a TLS validation failure; never use it for first attempts.
func NewInsecure(cfg Config) *http.Client {
	return build(cfg.withDefaults(), true)
}

func build(cfg Config, insecure bool) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAliveTimeout,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.DialTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}

	maxRedirects := cfg.MaxRedirects
	return &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}
}

// NewRequest builds a GET request for url carrying the configured
// User-Agent and Accept headers. ctx bounds the request lifetime in
// addition to the client's own timeout.
func (c Config) NewRequest(ctx context.Context, url string) (*http.Request, error) {
	cfg := c.withDefaults()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", cfg.Accept)
	return req, nil
}
