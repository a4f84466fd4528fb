package cache

import (
	"testing"
	"time"
)

func TestQueryCacheFingerprintStable(t *testing.T) {
	k1 := Fingerprint("MATCH (n) RETURN n", nil)
	k2 := Fingerprint("MATCH (n) RETURN n", nil)
	if k1 != k2 {
		t.Errorf("same query produced different fingerprints: %s vs %s", k1, k2)
	}

	k3 := Fingerprint("MATCH (m) RETURN m", nil)
	if k1 == k3 {
		t.Error("different queries produced the same fingerprint")
	}

	k4 := Fingerprint("MATCH (n) RETURN n", []string{"id"})
	if k1 == k4 {
		t.Error("different parameter sets produced the same fingerprint")
	}
}

func TestQueryCacheGetPut(t *testing.T) {
	c := NewQueryCache(100, time.Minute)
	key := Fingerprint("MATCH (n) RETURN n", nil)
	c.Put(key, "plan1")

	v, ok := c.Get(key)
	if !ok || v != "plan1" {
		t.Fatalf("Get = %v, %v; want plan1, true", v, ok)
	}
}

func TestQueryCacheExpiresAfterTTL(t *testing.T) {
	c := NewQueryCache(100, 20*time.Millisecond)
	c.Put("k", "v")

	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should exist before TTL")
	}
	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("entry should be expired")
	}
}

func TestQueryCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewQueryCache(100, 0)
	c.Put("k", "v")
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Error("zero TTL should mean no expiration")
	}
}

func TestQueryCacheClearIsOnlyInvalidation(t *testing.T) {
	c := NewQueryCache(100, time.Hour)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Clear()
	if c.Len() != 0 {
		t.Error("clear should empty the cache")
	}
}

func TestQueryCacheSetEnabled(t *testing.T) {
	c := NewQueryCache(100, time.Hour)
	c.Put("a", 1)
	c.SetEnabled(false)
	if c.Len() != 0 {
		t.Error("disabling should clear the cache")
	}
	if _, ok := c.Get("a"); ok {
		t.Error("disabled cache should report a miss")
	}
	c.Put("b", 2) // no-op while disabled
	c.SetEnabled(true)
	if _, ok := c.Get("b"); ok {
		t.Error("write while disabled should not have been recorded")
	}
}
