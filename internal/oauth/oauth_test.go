package oauth

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

// Reference vector from OAuth Core 1.0 Appendix A.5.
var refCreds = Credentials{
	ConsumerKey:       "dpf43f3p2l4k3l03",
	ConsumerSecret:    "kd94hf93k423kf44",
	AccessToken:       "nnch734d00sl2jdk",
	AccessTokenSecret: "pfkkdhi9sl3r4s00",
}

func refSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(refCreds,
		WithNonceSource(func() string { return "kllo9940pd9333jh" }),
		WithClock(func() time.Time { return time.Unix(1191242096, 0) }),
	)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	return s
}

func TestSignature_ReferenceVector(t *testing.T) {
	s := refSigner(t)

	u, _ := url.Parse("http://photos.example.net/photos?file=vacation.jpg&size=original")
	auth, err := s.Authorization("GET", u)
	if err != nil {
		t.Fatalf("Authorization failed: %v", err)
	}

	want := `oauth_signature="tR3%2BTy81lMeYAr%2FFid0kMTYa%2FWM%3D"`
	if !strings.Contains(auth, want) {
		t.Errorf("Authorization = %q, want it to contain %q", auth, want)
	}
	if !strings.HasPrefix(auth, "OAuth ") {
		t.Errorf("Authorization = %q, want OAuth prefix", auth)
	}
	if !strings.Contains(auth, `oauth_signature_method="HMAC-SHA1"`) {
		t.Errorf("Authorization missing signature method: %q", auth)
	}
	if !strings.Contains(auth, `oauth_timestamp="1191242096"`) {
		t.Errorf("Authorization missing timestamp: %q", auth)
	}
}

func TestSignature_Deterministic(t *testing.T) {
	s := refSigner(t)

	u, _ := url.Parse("https://stream.twitter.com/1.1/statuses/filter.json?track=golang")
	first, err := s.Authorization("GET", u)
	if err != nil {
		t.Fatalf("Authorization failed: %v", err)
	}
	second, err := s.Authorization("GET", u)
	if err != nil {
		t.Fatalf("Authorization failed: %v", err)
	}

	if first != second {
		t.Errorf("signatures differ with fixed nonce/clock:\n%s\n%s", first, second)
	}
}

func TestRequestHeaders_Order(t *testing.T) {
	s := refSigner(t)

	headers, err := s.RequestHeaders("GET", "https://stream.twitter.com/1.1/statuses/sample.json")
	if err != nil {
		t.Fatalf("RequestHeaders failed: %v", err)
	}

	wantOrder := []string{"Authorization", "Host", "User-Agent", "Accept"}
	if len(headers) != len(wantOrder) {
		t.Fatalf("got %d headers, want %d", len(headers), len(wantOrder))
	}
	for i, name := range wantOrder {
		if headers[i].Name != name {
			t.Errorf("headers[%d].Name = %q, want %q", i, headers[i].Name, name)
		}
	}

	if headers[1].Value != "stream.twitter.com" {
		t.Errorf("Host = %q, want %q", headers[1].Value, "stream.twitter.com")
	}
	if headers[3].Value != "*/*" {
		t.Errorf("Accept = %q, want %q", headers[3].Value, "*/*")
	}
}

func TestNewSigner_InvalidCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{"empty consumer key", Credentials{"", "cs", "at", "as"}},
		{"empty consumer secret", Credentials{"ck", "", "at", "as"}},
		{"empty access token", Credentials{"ck", "cs", "", "as"}},
		{"empty access token secret", Credentials{"ck", "cs", "at", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSigner(tt.creds)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("NewSigner error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestWithToken(t *testing.T) {
	s := refSigner(t)

	rotated, err := s.WithToken("newtoken", "newsecret")
	if err != nil {
		t.Fatalf("WithToken failed: %v", err)
	}

	u, _ := url.Parse("https://stream.twitter.com/1.1/statuses/sample.json")
	auth, err := rotated.Authorization("GET", u)
	if err != nil {
		t.Fatalf("Authorization failed: %v", err)
	}
	if !strings.Contains(auth, `oauth_token="newtoken"`) {
		t.Errorf("Authorization = %q, want rotated token", auth)
	}

	// The original signer is untouched.
	orig, err := s.Authorization("GET", u)
	if err != nil {
		t.Fatalf("Authorization failed: %v", err)
	}
	if !strings.Contains(orig, `oauth_token="nnch734d00sl2jdk"`) {
		t.Errorf("original Authorization = %q, want original token", orig)
	}

	if _, err := s.WithToken("", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("WithToken with empty token error = %v, want ErrInvalidCredentials", err)
	}
}

func TestPercentEncode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"abcABC123", "abcABC123"},
		{"-._~", "-._~"},
		{"Ladies + Gentlemen", "Ladies%20%2B%20Gentlemen"},
		{"Dogs, Cats & Mice", "Dogs%2C%20Cats%20%26%20Mice"},
		{"☃", "%E2%98%83"},
	}

	for _, tt := range tests {
		if got := percentEncode(tt.in); got != tt.want {
			t.Errorf("percentEncode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
