package db

import (
	"testing"
	"time"
)

func TestConnectRequiresDSN(t *testing.T) {
	if _, err := Connect("", Pool{}); err == nil {
		t.Fatalf("empty dsn must be rejected before dialing")
	}
}

func TestPoolDefaults(t *testing.T) {
	pool := Pool{}.withDefaults()
	if pool.MaxOpenConns != 10 || pool.MaxIdleConns != 5 || pool.ConnMaxLifetime != 30*time.Minute {
		t.Fatalf("zero pool = %+v, want 10/5/30m defaults", pool)
	}

	custom := Pool{MaxOpenConns: 50, MaxIdleConns: 20, ConnMaxLifetime: time.Hour}.withDefaults()
	if custom.MaxOpenConns != 50 || custom.MaxIdleConns != 20 || custom.ConnMaxLifetime != time.Hour {
		t.Fatalf("configured pool = %+v, must pass through unchanged", custom)
	}
}

func TestCloseOnNilHandle(t *testing.T) {
	var p *Postgres
	if err := p.Close(); err != nil {
		t.Fatalf("nil handle close: %v", err)
	}
	if err := (&Postgres{}).Close(); err != nil {
		t.Fatalf("empty handle close: %v", err)
	}
}
