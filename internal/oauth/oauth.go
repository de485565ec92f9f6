// Package oauth signs streaming requests with one-legged OAuth1 (HMAC-SHA1).
package oauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCredentials indicates an empty key or secret in the credential set.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials holds the consumer and access token material for signing.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// Header is a single request header. Order is significant on the wire.
type Header struct {
	Name  string
	Value string
}

// Signer produces authenticated header sets for streaming requests.
// It is stateless and safe for concurrent use.
type Signer struct {
	creds     Credentials
	userAgent string
	nonce     func() string
	now       func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithNonceSource overrides the nonce generator. Used in tests.
func WithNonceSource(fn func() string) Option {
	return func(s *Signer) { s.nonce = fn }
}

// WithClock overrides the timestamp source. Used in tests.
func WithClock(fn func() time.Time) Option {
	return func(s *Signer) { s.now = fn }
}

// WithUserAgent sets the User-Agent header value.
func WithUserAgent(ua string) Option {
	return func(s *Signer) { s.userAgent = ua }
}

// NewSigner validates the credential set and returns a Signer.
func NewSigner(creds Credentials, opts ...Option) (*Signer, error) {
	if creds.ConsumerKey == "" || creds.ConsumerSecret == "" ||
		creds.AccessToken == "" || creds.AccessTokenSecret == "" {
		return nil, ErrInvalidCredentials
	}

	s := &Signer{
		creds:     creds,
		userAgent: "twitterstream",
		nonce:     randomNonce,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// WithToken returns a copy of the signer carrying new access token
// material. The consumer key pair and options are retained.
func (s *Signer) WithToken(accessToken, accessTokenSecret string) (*Signer, error) {
	if accessToken == "" || accessTokenSecret == "" {
		return nil, ErrInvalidCredentials
	}
	next := *s
	next.creds.AccessToken = accessToken
	next.creds.AccessTokenSecret = accessTokenSecret
	return &next, nil
}

// RequestHeaders signs rawURL and returns the ordered header set for one
// connection attempt: Authorization, Host, User-Agent, Accept.
func (s *Signer) RequestHeaders(method, rawURL string) ([]Header, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	auth, err := s.Authorization(method, u)
	if err != nil {
		return nil, err
	}

	return []Header{
		{"Authorization", auth},
		{"Host", u.Host},
		{"User-Agent", s.userAgent},
		{"Accept", "*/*"},
	}, nil
}

// Authorization computes the OAuth Authorization header value for a request.
func (s *Signer) Authorization(method string, u *url.URL) (string, error) {
	oauthParams := map[string]string{
		"oauth_consumer_key":     s.creds.ConsumerKey,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.now().Unix(), 10),
		"oauth_token":            s.creds.AccessToken,
		"oauth_version":          "1.0",
	}

	sig, err := s.signature(method, u, oauthParams)
	if err != nil {
		return "", err
	}
	oauthParams["oauth_signature"] = sig

	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", percentEncode(k), percentEncode(oauthParams[k])))
	}
	return "OAuth " + strings.Join(parts, ", "), nil
}

// signature computes base64(HMAC-SHA1(key, base string)) per RFC 5849 §3.4.
func (s *Signer) signature(method string, u *url.URL, oauthParams map[string]string) (string, error) {
	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", fmt.Errorf("parse query: %w", err)
	}

	// Collect request parameters: query string plus protocol parameters.
	type pair struct{ key, value string }
	var pairs []pair
	for k, vs := range query {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}
	for k, v := range oauthParams {
		pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	encoded := make([]string, len(pairs))
	for i, p := range pairs {
		encoded[i] = p.key + "=" + p.value
	}
	paramString := strings.Join(encoded, "&")

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	// Default ports are excluded from the signature base string.
	if (scheme == "http" && strings.HasSuffix(host, ":80")) ||
		(scheme == "https" && strings.HasSuffix(host, ":443")) {
		host = host[:strings.LastIndex(host, ":")]
	}
	baseURL := scheme + "://" + host + u.EscapedPath()
	base := strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(paramString)

	key := percentEncode(s.creds.ConsumerSecret) + "&" + percentEncode(s.creds.AccessTokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// percentEncode implements the RFC 5849 §3.6 encoding: unreserved characters
// pass through, everything else becomes uppercase %XX.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func randomNonce() string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
