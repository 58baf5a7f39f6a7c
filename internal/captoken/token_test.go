package captoken

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkeye/livestage/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newCodec(t *testing.T, opts ...Option) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c := newCodec(t)
	tok, err := c.Issue("abcd-1234", "viewer1")
	if err != nil {
		t.Fatal(err)
	}
	s, err := c.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if s.Identity != "viewer1" || s.RoomName != "abcd-1234" {
		t.Errorf("session = %+v", s)
	}
}

func TestIssueDeterministicWithoutTTL(t *testing.T) {
	c := newCodec(t)
	a, _ := c.Issue("abcd-1234", "host1")
	b, _ := c.Issue("abcd-1234", "host1")
	if a != b {
		t.Error("tokens without ttl should be identical")
	}
}

func TestVerifyRejects(t *testing.T) {
	c := newCodec(t)
	other, err := NewCodec("ffffffffffffffffffffffffffffffff")
	if err != nil {
		t.Fatal(err)
	}
	forged, _ := other.Issue("abcd-1234", "host1")

	noClaims, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"foo": "bar"}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"identity": "x", "room_name": "y"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name  string
		token string
		kind  domain.Kind
	}{
		{"missing", "", domain.KindUnauthenticated},
		{"garbage", "not.a.jwt", domain.KindUnauthenticated},
		{"single segment", "garbage", domain.KindUnauthenticated},
		{"wrong secret", forged, domain.KindInvalidToken},
		{"absent claims", noClaims, domain.KindInvalidToken},
		{"alg none", noneAlg, domain.KindInvalidToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Verify(tc.token)
			if got := domain.KindOf(err); got != tc.kind {
				t.Errorf("kind = %s, want %s (err %v)", got, tc.kind, err)
			}
		})
	}
}

func TestTTLExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := newCodec(t, WithTTL(time.Hour), WithClock(func() time.Time { return now }))
	tok, err := c.Issue("abcd-1234", "viewer1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Verify(tok); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	now = now.Add(2 * time.Hour)
	_, err = c.Verify(tok)
	if domain.KindOf(err) != domain.KindInvalidToken || !strings.Contains(domain.MessageOf(err), "expired") {
		t.Errorf("expired token err = %v", err)
	}
}

func TestWeakSecret(t *testing.T) {
	if _, err := NewCodec("short"); err != ErrWeakSecret {
		t.Errorf("err = %v", err)
	}
}

func TestFromHeader(t *testing.T) {
	cases := []struct {
		header string
		want   string
		kind   domain.Kind
	}{
		{"Token abc", "abc", 0},
		{"Bearer abc", "abc", 0},
		{"token  abc ", "abc", 0},
		{"", "", domain.KindUnauthenticated},
		{"Token", "", domain.KindUnauthenticated},
		{"Basic abc", "", domain.KindUnauthenticated},
	}
	for _, tc := range cases {
		got, err := FromHeader(tc.header)
		if tc.kind != 0 {
			if domain.KindOf(err) != tc.kind {
				t.Errorf("FromHeader(%q) err = %v", tc.header, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("FromHeader(%q) = %q, %v", tc.header, got, err)
		}
	}
}
