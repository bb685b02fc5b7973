package engine

import (
	"maps"
	"net/url"

	stealth "github.com/anatolykoptev/go-stealth"
)

// BrowserClient fetches with a Chrome TLS fingerprint and, when configured,
// through a rotating proxy pool.
type BrowserClient = stealth.BrowserClient

// RandomUserAgent returns a current desktop browser user agent.
func RandomUserAgent() string { return stealth.RandomUserAgent() }

// BrowserHeaders returns a full navigation header set for fetching pageURL:
// Chrome defaults plus sec-fetch-* and a same-origin referer.
func BrowserHeaders(pageURL string) map[string]string {
	h := make(map[string]string, 12)
	maps.Copy(h, stealth.ChromeHeaders())
	h["user-agent"] = RandomUserAgent()
	h["accept"] = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	h["accept-language"] = "en-US,en;q=0.9,id;q=0.8"
	h["sec-fetch-dest"] = "document"
	h["sec-fetch-mode"] = "navigate"
	h["sec-fetch-site"] = "same-origin"
	h["sec-fetch-user"] = "?1"
	h["upgrade-insecure-requests"] = "1"
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		h["referer"] = u.Scheme + "://" + u.Host + "/"
	}
	return h
}
