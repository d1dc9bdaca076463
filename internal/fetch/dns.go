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
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// ErrNoSuchHost marks a target whose name has no A or AAAA records.
var ErrNoSuchHost = errors.New("no such host")

// Resolver answers the single question the fetch path needs: does this
// host resolve to any address at all. It is safe for concurrent use.
type Resolver struct {
	client  *dns.Client
	servers []string
}

// NewResolver builds a Resolver from the system resolver configuration.
// Hosts without a usable resolv.conf get an error, and callers should run
// without the preflight in that case.
func NewResolver() (*Resolver, error) {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return nil, fmt.Errorf("loading resolver config: %w", err)
	}
	if len(conf.Servers) == 0 {
		return nil, errors.New("no nameservers configured")
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	return &Resolver{
		client:  &dns.Client{Timeout: 3 * time.Second},
		servers: servers,
	}, nil
}

// NewResolverWithServers builds a Resolver querying the given
// "host:port" servers directly.
func NewResolverWithServers(servers ...string) *Resolver {
	return &Resolver{
		client:  &dns.Client{Timeout: 3 * time.Second},
		servers: servers,
	}
}

// Preflight returns nil when host has at least one address record,
// ErrNoSuchHost when the name affirmatively does not resolve, and any
// other error when no nameserver gave a usable answer (callers treat
// that as "unknown, proceed").
func (r *Resolver) Preflight(ctx context.Context, host string) error {
	// Ports and literal addresses bypass DNS entirely.
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if net.ParseIP(host) != nil {
		return nil
	}

	name := dns.Fqdn(strings.ToLower(host))
	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(name, qtype)
		msg.RecursionDesired = true

		for _, server := range r.servers {
			resp, _, err := r.client.ExchangeContext(ctx, msg, server)
			if err != nil {
				lastErr = err
				continue
			}
			switch resp.Rcode {
			case dns.RcodeSuccess:
				if len(resp.Answer) > 0 {
					return nil
				}
				// NOERROR with an empty answer: this qtype has no
				// records, but the other may.
			case dns.RcodeNameError:
				return fmt.Errorf("%s: %w", host, ErrNoSuchHost)
			default:
				lastErr = fmt.Errorf("%s: rcode %s from %s", host, dns.RcodeToString[resp.Rcode], server)
			}
			break
		}
	}
	if lastErr != nil {
		return lastErr
	}
	// Both qtypes answered NOERROR with no records.
	return fmt.Errorf("%s: %w", host, ErrNoSuchHost)
}
