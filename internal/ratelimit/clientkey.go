// SPDX-License-Identifier: MIT

package ratelimit

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-chi/httprate"
)

// TrustedProxies is the set of peers allowed to name the real client in
// X-Forwarded-For or X-Real-IP. The zero value trusts nobody.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies accepts CIDRs and bare addresses, one per entry or
// comma separated. Catch-all networks and unspecified addresses are refused
// since they would let any peer pick its own key.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var split []string
	for _, e := range entries {
		split = append(split, strings.Split(e, ",")...)
	}
	var out TrustedProxies
	for _, e := range split {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		var p netip.Prefix
		if strings.Contains(e, "/") {
			parsed, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			p = parsed.Masked()
		} else {
			addr, err := netip.ParseAddr(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			p = netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen())
		}
		if p.Bits() == 0 || p.Addr().IsUnspecified() {
			return nil, fmt.Errorf("trusted proxy %q would trust every peer", e)
		}
		out = append(out, p)
	}
	return out, nil
}

func (t TrustedProxies) contains(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientKey identifies the caller for rate limiting. It is the TCP peer
// unless that peer is a trusted proxy, in which case X-Forwarded-For is
// walked from the right past further trusted hops, then X-Real-IP is tried.
func (t TrustedProxies) ClientKey(r *http.Request) string {
	peer, _ := httprate.KeyByIP(r)
	if len(t) == 0 || !t.contains(peer) {
		return peer
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if _, err := netip.ParseAddr(hop); err != nil {
				break
			}
			if !t.contains(hop) {
				return hop
			}
		}
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
		if _, err := netip.ParseAddr(xrip); err == nil {
			return xrip
		}
	}
	return peer
}
