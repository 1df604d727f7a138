package service

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yndnr/svcreg-go/internal/core/domain"
	"github.com/yndnr/svcreg-go/pkg/token"
)

type rejectRecorder struct {
	nopRecorder
	rejects []string
}

func (r *rejectRecorder) TokenReject(reason string) {
	r.rejects = append(r.rejects, reason)
}

func newTestTokens(t *testing.T) (*TokenManager, *rejectRecorder) {
	t.Helper()
	rec := &rejectRecorder{}
	tm, err := NewTokenManager(bytes.Repeat([]byte{7}, token.SecretSize), rec, testLogger())
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	return tm, rec
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm, _ := newTestTokens(t)
	a := domain.Handle{Index: 1, Gen: 1}
	b := domain.Handle{Index: 2, Gen: 1}

	ta := tm.CreateToken(a)
	tb := tm.CreateToken(b)
	if len(ta) != token.Size || len(tb) != token.Size {
		t.Fatalf("token sizes = %d, %d", len(ta), len(tb))
	}
	if bytes.Equal(ta, tb) {
		t.Fatal("tokens must be unique")
	}

	if got := tm.Get(ta); got != a {
		t.Errorf("Get(ta) = %v, want %v", got, a)
	}
	if got := tm.Get(tb); got != b {
		t.Errorf("Get(tb) = %v, want %v", got, b)
	}
	if tm.Len() != 2 {
		t.Errorf("Len() = %d", tm.Len())
	}

	if !tm.Unregister(ta) {
		t.Fatal("Unregister() = false")
	}
	if !tm.Get(ta).IsZero() {
		t.Error("token still resolves after Unregister()")
	}
	if tm.Unregister(ta) {
		t.Error("second Unregister() should fail")
	}
}

func TestTokenManager_SameRefGetsDistinctTokens(t *testing.T) {
	tm, _ := newTestTokens(t)
	ref := domain.Handle{Index: 5, Gen: 3}

	t1, t2 := tm.CreateToken(ref), tm.CreateToken(ref)
	if bytes.Equal(t1, t2) {
		t.Error("each CreateToken() call must mint a new token")
	}
	tm.Unregister(t1)
	if got := tm.Get(t2); got != ref {
		t.Errorf("unregistering one token affected the other: %v", got)
	}
}

func TestTokenManager_IDsStartAtOne(t *testing.T) {
	tm, _ := newTestTokens(t)
	tok := tm.CreateToken(domain.Handle{Index: 1, Gen: 1})
	id, ok := token.ID(tok)
	if !ok || id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}
}

func TestTokenManager_ZeroRef(t *testing.T) {
	tm, _ := newTestTokens(t)
	if tok := tm.CreateToken(domain.Handle{}); tok != nil {
		t.Errorf("CreateToken(zero) = %x", tok)
	}
}

func TestTokenManager_Rejects(t *testing.T) {
	tm, rec := newTestTokens(t)
	tok := tm.CreateToken(domain.Handle{Index: 1, Gen: 1})

	forged := bytes.Clone(tok)
	forged[len(forged)-1] ^= 0x01

	truncated := tok[:token.Size-1]

	reserved, err := token.Build(bytes.Repeat([]byte{7}, token.SecretSize), 0)
	if err != nil {
		t.Fatal(err)
	}
	unknown, err := token.Build(bytes.Repeat([]byte{7}, token.SecretSize), 42)
	if err != nil {
		t.Fatal(err)
	}

	for _, bad := range [][]byte{nil, tok[:3], reserved, unknown, forged, truncated} {
		if got := tm.Get(bad); !got.IsZero() {
			t.Errorf("Get(%x) = %v, want zero", bad, got)
		}
	}
	if tm.Unregister(forged) {
		t.Error("Unregister() accepted a forged token")
	}
	if got := tm.Get(tok); got.IsZero() {
		t.Error("valid token stopped resolving")
	}

	want := []string{"short", "short", "reserved", "unknown", "forged", "forged", "forged"}
	if diff := cmp.Diff(want, rec.rejects); diff != "" {
		t.Errorf("reject reasons mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenManager_OtherSecret(t *testing.T) {
	tm, _ := newTestTokens(t)
	tm.CreateToken(domain.Handle{Index: 1, Gen: 1})

	foreign, err := token.Build(bytes.Repeat([]byte{8}, token.SecretSize), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !tm.Get(foreign).IsZero() {
		t.Error("token signed with another secret must not resolve")
	}
}

func TestNewTokenManager_RandomSecret(t *testing.T) {
	tm1, err := NewTokenManager(nil, nil, nil)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	tm2, err := NewTokenManager(nil, nil, nil)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	ref := domain.Handle{Index: 1, Gen: 1}
	if bytes.Equal(tm1.CreateToken(ref), tm2.CreateToken(ref)) {
		t.Error("two managers with random secrets produced the same token")
	}
}
