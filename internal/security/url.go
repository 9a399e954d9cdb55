// Package security holds the checks applied to untrusted input reaching
// authbridge: WebSocket origins and user-supplied profile URLs.
package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// IsPrivateIP checks if the given IP address is a private, localhost, or link-local address.
// Returns false for public IPs and invalid IP strings.
func IsPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// IsLocalhost checks if the given host is localhost.
// Accepts: "localhost", "127.0.0.1", "::1", "[::1]", "0.0.0.0"
func IsLocalhost(host string) bool {
	// Remove brackets from IPv6
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")

	switch host {
	case "localhost", "127.0.0.1", "::1", "0.0.0.0":
		return true
	}

	// Check if it's a 127.x.x.x address
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ValidatePhotoURL checks a profile photo URL supplied by a caller.
// The URL must be absolute http(s) with a host. Localhost and private
// addresses are rejected unless allowLocal is set.
func ValidatePhotoURL(urlStr string, allowLocal bool) error {
	if urlStr == "" {
		return fmt.Errorf("URL is empty")
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q (only http and https are allowed)", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}

	if allowLocal {
		return nil
	}
	if IsLocalhost(host) {
		return fmt.Errorf("localhost URLs are not allowed")
	}
	if IsPrivateIP(host) {
		return fmt.Errorf("private IP addresses are not allowed")
	}
	return nil
}
