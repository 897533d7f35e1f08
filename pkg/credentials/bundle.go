// Package credentials holds the cookie/header bundle sent with every upstream
// request and the loaders that produce it.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

var (
	// ErrNoCookies is returned when a credentials document carries no usable cookie.
	ErrNoCookies = errors.New("no cookies in credentials")
)

// Bundle is the opaque credential set attached to upstream requests.
type Bundle struct {
	// Cookie is sent verbatim as the Cookie header.
	Cookie string `json:"cookies"`

	// Headers are copied onto every request. Empty means the client default set.
	Headers map[string]string `json:"headers,omitempty"`
}

// IsZero reports whether the bundle carries no cookie.
func (b Bundle) IsZero() bool {
	return b.Cookie == ""
}

// document mirrors the exported browser-session file (cookies2.json).
type document struct {
	Cookies struct {
		StringFormat string            `json:"string_format"`
		DictFormat   map[string]string `json:"dict_format"`
	} `json:"cookies"`
	Headers map[string]string `json:"headers"`
}

// Parse decodes a browser-session document. The string form of the cookies wins
// over the dict form; the dict form is joined in key order.
func Parse(data []byte) (Bundle, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Bundle{}, fmt.Errorf("decode credentials: %w", err)
	}

	cookie := doc.Cookies.StringFormat
	if cookie == "" && len(doc.Cookies.DictFormat) > 0 {
		keys := make([]string, 0, len(doc.Cookies.DictFormat))
		for k := range doc.Cookies.DictFormat {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+doc.Cookies.DictFormat[k])
		}
		cookie = strings.Join(parts, "; ")
	}

	if cookie == "" {
		return Bundle{}, ErrNoCookies
	}

	return Bundle{Cookie: cookie, Headers: doc.Headers}, nil
}

// Marshal encodes the bundle back into the browser-session document format.
func Marshal(b Bundle) ([]byte, error) {
	var doc document
	doc.Cookies.StringFormat = b.Cookie
	doc.Headers = b.Headers

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}
	return data, nil
}

// LoadFile reads a browser-session document from disk.
func LoadFile(path string) (Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		credentialLoads.WithLabelValues("file", "error").Inc()
		return Bundle{}, fmt.Errorf("read credentials file: %w", err)
	}

	b, err := Parse(data)
	if err != nil {
		credentialLoads.WithLabelValues("file", "error").Inc()
		return Bundle{}, err
	}

	credentialLoads.WithLabelValues("file", "ok").Inc()
	return b, nil
}
