package main

import (
	"testing"
	"time"
)

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		conn     string
		addr     string
		password string
		tls      bool
	}{
		{name: "url", conn: "redis://:pw@localhost:6380/0", addr: "localhost:6380", password: "pw"},
		{name: "azure", conn: "cache.example.net:6380,password=secret,ssl=True,abortConnect=False", addr: "cache.example.net:6380", password: "secret", tls: true},
		{name: "bare", conn: "localhost:6379", addr: "localhost:6379"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := redisOptions(tt.conn)
			if opts.Addr != tt.addr {
				t.Fatalf("addr: got %q want %q", opts.Addr, tt.addr)
			}
			if opts.Password != tt.password {
				t.Fatalf("password: got %q want %q", opts.Password, tt.password)
			}
			if (opts.TLSConfig != nil) != tt.tls {
				t.Fatalf("tls: got %v want %v", opts.TLSConfig != nil, tt.tls)
			}
		})
	}
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("TEST_TODO_DUR", "")
	t.Setenv("TEST_TODO_INT", "7")
	t.Setenv("TEST_TODO_BOOL", "yes")

	if got := envDur("TEST_TODO_DUR", time.Minute); got != time.Minute {
		t.Fatalf("envDur default: got %v", got)
	}
	if got := envInt("TEST_TODO_INT", 1); got != 7 {
		t.Fatalf("envInt: got %d", got)
	}
	if got := envBool("TEST_TODO_BOOL", true); !got {
		t.Fatalf("envBool should fall back to default on unparsable value")
	}
	if got := envString("TEST_TODO_MISSING", "todos"); got != "todos" {
		t.Fatalf("envString default: got %q", got)
	}
}
