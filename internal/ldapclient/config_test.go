package ldapclient

import "testing"

func TestConfigWithDefaults(t *testing.T) {
	c := Config{}.WithDefaults()

	if c.PoolSize != 5 {
		t.Fatalf("expected default pool size 5, got %d", c.PoolSize)
	}

	if c.QueryConcurrency != 10 {
		t.Fatalf("expected default query concurrency 10, got %d", c.QueryConcurrency)
	}

	if c.UserMainAttribute != "uid" {
		t.Fatalf("expected default main attribute uid, got %s", c.UserMainAttribute)
	}
}

func TestConfigWithDefaultsPreservesExplicitValues(t *testing.T) {
	c := Config{PoolSize: 2, UserMainAttribute: "sAMAccountName"}.WithDefaults()

	if c.PoolSize != 2 {
		t.Fatalf("expected explicit pool size preserved, got %d", c.PoolSize)
	}

	if c.UserMainAttribute != "sAMAccountName" {
		t.Fatalf("expected explicit main attribute preserved, got %s", c.UserMainAttribute)
	}
}
