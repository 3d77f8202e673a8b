package nonce

import (
	"context"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewTokenShape(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewToken()
	if len(a) != 32 || a == b {
		t.Errorf("unexpected tokens %q, %q", a, b)
	}
}

func TestValidAction(t *testing.T) {
	for action, want := range map[string]bool{
		ActionBlocks: true,
		ActionExport: true,
		"":           false,
		"a:b":        false,
		"*":          false,
		"bl[x]":      false,
		"Bl_blocks":  false,
		"bl-blocks":  false,
	} {
		if got := ValidAction(action); got != want {
			t.Errorf("%q: got %v, want %v", action, got, want)
		}
	}
}

func TestMemoryStoreBindsActionAndSubject(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	token, err := s.Issue(ctx, ActionBlocks, "key-1")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name            string
		action, subject string
		token           string
		want            bool
	}{
		{"valid", ActionBlocks, "key-1", token, true},
		{"reusable", ActionBlocks, "key-1", token, true},
		{"other action", ActionExport, "key-1", token, false},
		{"other key", ActionBlocks, "key-2", token, false},
		{"garbage", ActionBlocks, "key-1", "nope", false},
		{"empty", ActionBlocks, "key-1", "", false},
	}
	for _, tt := range tests {
		ok, err := s.Verify(ctx, tt.action, tt.subject, tt.token)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if ok != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, ok, tt.want)
		}
	}
}

func TestMemoryStoreExpiryAndRevoke(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Hour)
	s.SetClock(func() time.Time { return now })

	token, _ := s.Issue(ctx, ActionExport, "key-1")
	now = now.Add(2 * time.Hour)
	if ok, _ := s.Verify(ctx, ActionExport, "key-1", token); ok {
		t.Error("expired token accepted")
	}

	token, _ = s.Issue(ctx, ActionExport, "key-1")
	other, _ := s.Issue(ctx, ActionExport, "key-2")
	if err := s.RevokeAll(ctx, "key-1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Verify(ctx, ActionExport, "key-1", token); ok {
		t.Error("revoked token accepted")
	}
	if ok, _ := s.Verify(ctx, ActionExport, "key-2", other); !ok {
		t.Error("revoke must not touch other keys")
	}
}

func TestInstrumentedCountsResults(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	s := WithMetrics(NewMemoryStore(time.Hour), m)

	token, _ := s.Issue(ctx, ActionBlocks, "k")
	s.Verify(ctx, ActionBlocks, "k", token)
	s.Verify(ctx, ActionBlocks, "k", "bad")

	if n := testutil.ToFloat64(m.NonceChecksTotal.WithLabelValues(ActionBlocks, "valid")); n != 1 {
		t.Errorf("valid = %v, want 1", n)
	}
	if n := testutil.ToFloat64(m.NonceChecksTotal.WithLabelValues(ActionBlocks, "invalid")); n != 1 {
		t.Errorf("invalid = %v, want 1", n)
	}
}

func TestRedisStore(t *testing.T) {
	client, err := redis.NewClient(config.RedisConfig{Addr: "localhost:6379", PoolSize: 2})
	if err != nil {
		t.Skipf("skipping: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	s := NewRedisStore(client, time.Minute)
	subject := "test-" + t.Name()
	token, err := s.Issue(ctx, ActionBlocks, subject)
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := s.Verify(ctx, ActionBlocks, subject, token); err != nil || !ok {
		t.Fatalf("expected valid token, got %v, %v", ok, err)
	}
	if ok, _ := s.Verify(ctx, ActionExport, subject, token); ok {
		t.Error("token accepted for another action")
	}
	if err := s.RevokeAll(ctx, subject); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Verify(ctx, ActionBlocks, subject, token); ok {
		t.Error("revoked token accepted")
	}
}
