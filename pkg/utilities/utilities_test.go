package utilities

import (
	"path/filepath"
	"testing"
)

func TestKeyID_StableAndSeparated(t *testing.T) {
	a := KeyID("user", "BANK", "XXXX1234")
	if a != KeyID("user", "BANK", "XXXX1234") {
		t.Fatal("KeyID must be deterministic")
	}
	if len(a) != 32 {
		t.Errorf("len = %d", len(a))
	}
	if KeyID("ab", "c") == KeyID("a", "bc") {
		t.Error("parts must not run together")
	}
}

func TestDigest(t *testing.T) {
	if Digest([]byte("x")) == Digest([]byte("y")) {
		t.Error("distinct input, same digest")
	}
	if len(Digest(nil)) != 64 {
		t.Error("expected 256-bit hex digest")
	}
}

func TestNewSnowflakeID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := NewSnowflakeID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestInit_WithRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	lg, err := Init(Config{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	lg.Sugar().Infow("hello", "k", "v")
	_ = lg.Sync()
}
