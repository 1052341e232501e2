// Package storage turns stored object keys (avatars) into expiring,
// signed download URLs. Uploading and thumbnailing happen elsewhere; this
// package only addresses objects that already exist.
package storage

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Resolver maps an object key to a URL a client can fetch.
// An empty key resolves to an empty URL.
type Resolver interface {
	ThumbnailURL(key string) string
	OriginalURL(key string) string
}

// Signer produces OSS-style query-signed URLs:
//
//	<base>/<key>?x-oss-process=style/<style>&Expires=<unix>&Signature=<b64>
//
// The signature is HMAC-SHA1 over "GET\n\n\n<expires>\n/<key>?x-oss-process=style/<style>".
type Signer struct {
	BaseURL        string
	Key            []byte
	ThumbnailStyle string
	OriginalStyle  string
	TTL            time.Duration
	Now            func() time.Time
}

// NewSigner builds a Signer with the wall clock.
func NewSigner(baseURL, key, thumbnailStyle, originalStyle string, ttl time.Duration) *Signer {
	return &Signer{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		Key:            []byte(key),
		ThumbnailStyle: thumbnailStyle,
		OriginalStyle:  originalStyle,
		TTL:            ttl,
		Now:            time.Now,
	}
}

// ThumbnailURL signs key with the thumbnail style.
func (s *Signer) ThumbnailURL(key string) string { return s.sign(key, s.ThumbnailStyle) }

// OriginalURL signs key with the original-image style.
func (s *Signer) OriginalURL(key string) string { return s.sign(key, s.OriginalStyle) }

func (s *Signer) sign(key, style string) string {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return ""
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	expires := strconv.FormatInt(now().Add(s.TTL).Unix(), 10)
	process := "style/" + style

	mac := hmac.New(sha1.New, s.Key)
	mac.Write([]byte("GET\n\n\n" + expires + "\n/" + key + "?x-oss-process=" + process))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	q := url.Values{}
	q.Set("x-oss-process", process)
	q.Set("Expires", expires)
	q.Set("Signature", sig)
	return s.BaseURL + "/" + escapePath(key) + "?" + q.Encode()
}

// Verify reports whether rawURL carries a valid, unexpired signature.
func (s *Signer) Verify(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	q := u.Query()
	exp, err := strconv.ParseInt(q.Get("Expires"), 10, 64)
	if err != nil {
		return false
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if now().Unix() > exp {
		return false
	}
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return false
	}
	key := strings.TrimPrefix(strings.TrimPrefix(u.Path, base.Path), "/")
	mac := hmac.New(sha1.New, s.Key)
	mac.Write([]byte("GET\n\n\n" + q.Get("Expires") + "\n/" + key + "?x-oss-process=" + q.Get("x-oss-process")))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(q.Get("Signature")))
}

func escapePath(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
