package cache

import (
	"context"
	"testing"

	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
)

func TestDisabledCacheIsNoop(t *testing.T) {
	if err := InitRedis(nil); err != nil {
		t.Fatalf("init disabled redis failed: %v", err)
	}
	if Enabled() {
		t.Fatalf("redis should be disabled")
	}
	ctx := context.Background()
	if receivers, err := Publish(ctx, "courier:1:assignments", map[string]string{"a": "b"}); err != nil || receivers != 0 {
		t.Fatalf("publish should be noop when disabled: %d %v", receivers, err)
	}
	state, hit, err := GetOperatorAuthState(ctx, 1)
	if err != nil || hit || state != nil {
		t.Fatalf("disabled cache should miss, got %v %v %v", state, hit, err)
	}
	if err := Ping(ctx); err != nil {
		t.Fatalf("ping should be noop when disabled: %v", err)
	}
}

func TestKeyUsesPrefix(t *testing.T) {
	current = &store{prefix: defaultKeyPrefix}
	if got := Key("courier:7:assignments"); got != "wh:courier:7:assignments" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := Key("  "); got != "wh" {
		t.Fatalf("unexpected empty key: %s", got)
	}
}

func TestInitRedisNormalizesPrefixAndAddr(t *testing.T) {
	if err := InitRedis(&config.RedisConfig{Enabled: true, Prefix: " perf: ", Port: 6390}); err != nil {
		t.Fatalf("init redis failed: %v", err)
	}
	defer func() { _ = Close() }()
	if !Enabled() {
		t.Fatalf("redis should be enabled")
	}
	if got := Key("rate:ops_login"); got != "perf:rate:ops_login" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := Client().Options().Addr; got != "127.0.0.1:6390" {
		t.Fatalf("unexpected addr: %s", got)
	}
	if err := Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if Enabled() {
		t.Fatalf("close should disable cache")
	}
}
