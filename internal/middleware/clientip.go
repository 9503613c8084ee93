package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIPExtractor derives the client key used for rate limiting and
// access logs. Forwarding headers are honored only when the direct peer
// is a trusted proxy; otherwise the peer address is the client.
type ClientIPExtractor struct {
	trustedCIDRs []*net.IPNet
}

// NewClientIPExtractor creates an extractor trusting the given CIDRs or
// single addresses. Invalid entries are skipped; configuration
// validation reports them before this point.
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	cidrs := make([]*net.IPNet, 0, len(trustedProxies))
	for _, proxy := range trustedProxies {
		proxy = strings.TrimSpace(proxy)
		_, cidr, err := net.ParseCIDR(proxy)
		if err != nil {
			ip := net.ParseIP(proxy)
			if ip == nil {
				continue
			}
			cidr = singleIPToCIDR(ip)
		}
		cidrs = append(cidrs, cidr)
	}
	return &ClientIPExtractor{trustedCIDRs: cidrs}
}

func singleIPToCIDR(ip net.IP) *net.IPNet {
	bits := 32
	if ip.To4() == nil {
		bits = 128
	} else {
		ip = ip.To4()
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
}

// Extract returns the client address of r.
//
// With a trusted peer, X-Forwarded-For is walked right to left and the
// first untrusted hop wins. X-Real-IP is the fallback when the chain is
// absent.
func (e *ClientIPExtractor) Extract(r *http.Request) string {
	remoteIP := stripPort(r.RemoteAddr)

	if len(e.trustedCIDRs) == 0 || !e.isTrusted(remoteIP) {
		return remoteIP
	}

	if xff := r.Header.Get(HeaderXForwardedFor); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !e.isTrusted(hop) {
				return hop
			}
		}
		return remoteIP
	}

	if xri := strings.TrimSpace(r.Header.Get(HeaderXRealIP)); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}

	return remoteIP
}

func (e *ClientIPExtractor) isTrusted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range e.trustedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// stripPort removes the port from "host:port" and "[v6]:port" forms.
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
