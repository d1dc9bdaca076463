/*
Package fetch retrieves ads.txt / app-ads.txt files from publisher sites.

For a target host it builds an ordered candidate list (HTTPS first, plain
HTTP as fallback) and walks it until one candidate yields a usable body.
A certificate validation failure on an HTTPS candidate triggers exactly one
retry of that same candidate with verification disabled; no other error
class ever disables verification. There is no generic retry loop.
*/
package fetch

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

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"adscheck/internal/client"
	"adscheck/internal/metrics"
)

// MaxBodySize caps how much of a response body is read. Real
// authorization files are a few hundred KB at most; anything larger is a
// misconfigured endpoint streaming garbage.
const MaxBodySize = 4 << 20

// StatusOK is the status string reported for a clean fetch.
const StatusOK = "OK"

// StatusOKSSLWarning is reported when the body was obtained only after
// disabling certificate verification.
const StatusOKSSLWarning = "OK (SSL warning)"

// StatusError is the typed failure returned when every candidate URL has
// been exhausted. Status carries the human-readable classification that
// report rows surface verbatim.
type StatusError struct {
	Host   string
	Status string
	Err    error // underlying transport error of the last attempt, may be nil
}

func (e *StatusError) Error() string { return e.Status }

func (e *StatusError) Unwrap() error { return e.Err }

// Result is a successful retrieval.
type Result struct {
	URL        string // candidate URL that produced the body
	Body       string // decoded to UTF-8
	SSLWarning bool   // body came from the verification-disabled retry
}

// Status returns the status string for the fetch contract.
func (r *Result) Status() string {
	if r.SSLWarning {
		return StatusOKSSLWarning
	}
	return StatusOK
}

// Fetcher retrieves authorization files. It holds one verifying and one
// non-verifying client, both immutable, and is safe for concurrent use.
type Fetcher struct {
	cfg      client.Config
	secure   *http.Client
	insecure *http.Client
	resolver *Resolver // nil disables the DNS preflight

	// jitterMax bounds the randomized pause before each attempt, advisory
	// pacing to avoid tripping per-IP rate limits. Zero disables it.
	jitterMax time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithJitter sets the upper bound of the randomized pre-attempt pause.
func WithJitter(d time.Duration) Option {
	return func(f *Fetcher) { f.jitterMax = d }
}

// WithResolver enables a DNS existence check before any HTTP attempt, so
// targets with no address records fail fast instead of burning two
// connect timeouts.
func WithResolver(r *Resolver) Option {
	return func(f *Fetcher) { f.resolver = r }
}

// New builds a Fetcher from cfg.
func New(cfg client.Config, opts ...Option) *Fetcher {
	f := &Fetcher{
		cfg:       cfg,
		secure:    client.New(cfg),
		insecure:  client.NewInsecure(cfg),
		jitterMax: 150 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Candidates returns the ordered URL list tried for host and filename.
func Candidates(host, filename string) []string {
	return []string{
		"https://" + host + "/" + filename,
		"http://" + host + "/" + filename,
	}
}

// NormalizeHost reduces an operator-supplied target to a bare lowercase
// host: scheme, path, query, userinfo, and trailing dots are stripped.
// Ports are kept. Returns "" for inputs with no host at all.
func NormalizeHost(target string) string {
	s := strings.TrimSpace(target)
	s = strings.ToLower(s)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, ".")
	return s
}

// Fetch retrieves filename from host. On success err is nil; on failure
// err is a *StatusError whose Status is the report-ready detail string.
func (f *Fetcher) Fetch(ctx context.Context, host, filename string) (*Result, error) {
	if f.resolver != nil {
		if err := f.resolver.Preflight(ctx, host); err != nil {
			if errors.Is(err, ErrNoSuchHost) {
				if metrics.IsMetricsEnabled() {
					metrics.GetMetrics().DNSPreflightRejected.Inc()
				}
				return nil, &StatusError{Host: host, Status: "DNS lookup failed", Err: err}
			}
			// Resolver infrastructure trouble: fall through to HTTP,
			// the dialer resolves on its own.
			log.Printf("fetch: DNS preflight for %s skipped: %v", host, err)
		}
	}

	lastStatus := "File not accessible"
	var lastErr error

	for _, url := range Candidates(host, filename) {
		f.pause(ctx)
		if ctx.Err() != nil {
			return nil, &StatusError{Host: host, Status: "File not accessible", Err: ctx.Err()}
		}

		res, status, err := f.attempt(ctx, url, f.secure)
		if err != nil && isCertError(err) && strings.HasPrefix(url, "https://") {
			// Narrow downgrade: one retry of this exact candidate
			// without verification.
			log.Printf("fetch: certificate validation failed for %s, retrying without verification", url)
			res, status, err = f.attempt(ctx, url, f.insecure)
			if err == nil && res != nil {
				res.SSLWarning = true
			}
		}
		if err == nil && res != nil {
			return res, nil
		}
		if status != "" {
			lastStatus = status
		}
		lastErr = err
	}

	return nil, &StatusError{Host: host, Status: lastStatus, Err: lastErr}
}

// attempt performs a single GET of url. It returns a non-nil Result on
// success, or a status classification for terminal HTTP-level failures
// (non-200 status, HTML body), or a transport error.
func (f *Fetcher) attempt(ctx context.Context, url string, c *http.Client) (*Result, string, error) {
	req, err := f.cfg.NewRequest(ctx, url)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// 403/404 are terminal for this candidate; the next candidate
		// in the list is still tried.
		return nil, fmt.Sprintf("HTTP %d", resp.StatusCode), errNonOK
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if IsHTML(contentType, raw) {
		if title := PageTitle(raw); title != "" {
			log.Printf("fetch: %s returned an HTML page (%q)", url, title)
		}
		return nil, "HTML instead of TXT", errHTMLBody
	}

	body, err := DecodeBody(raw, contentType)
	if err != nil {
		return nil, "", err
	}
	return &Result{URL: url, Body: body}, "", nil
}

func (f *Fetcher) pause(ctx context.Context) {
	if f.jitterMax <= 0 {
		return
	}
	d := time.Duration(rand.Int63n(int64(f.jitterMax)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

var (
	errNonOK    = errors.New("non-200 status")
	errHTMLBody = errors.New("HTML body")
)

// isCertError reports whether err stems from X.509 certificate
// validation, as opposed to any other transport failure.
func isCertError(err error) bool {
	var (
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidCert x509.CertificateInvalidError
		systemRoots x509.SystemRootsError
	)
	return errors.As(err, &certErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidCert) ||
		errors.As(err, &systemRoots)
}
