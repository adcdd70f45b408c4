package ldapclient

import "time"

// Config holds the tunables for one LdapClient instance (spec.md §4.1).
type Config struct {
	URL          string
	BindDN       string
	BindPassword string
	Base         string

	PoolSize         int           // default 5
	ConnectionTTL    time.Duration // default 60s
	QueryConcurrency int           // default 10
	CacheMax         int           // default 1000
	CacheTTL         time.Duration // default 300s

	UserMainAttribute string // default "uid"

	TimeLimit        time.Duration // LDAP timeLimit, default 10s
	AcquireTimeout   time.Duration // default 10s
	AcquirePollEvery time.Duration // default 50ms
}

// WithDefaults returns a copy of c with zero-valued fields replaced by the
// documented defaults.
func (c Config) WithDefaults() Config {
	if c.PoolSize <= 0 {
		c.PoolSize = 5
	}

	if c.ConnectionTTL <= 0 {
		c.ConnectionTTL = 60 * time.Second
	}

	if c.QueryConcurrency <= 0 {
		c.QueryConcurrency = 10
	}

	if c.CacheMax <= 0 {
		c.CacheMax = 1000
	}

	if c.CacheTTL <= 0 {
		c.CacheTTL = 300 * time.Second
	}

	if c.UserMainAttribute == "" {
		c.UserMainAttribute = "uid"
	}

	if c.TimeLimit <= 0 {
		c.TimeLimit = 10 * time.Second
	}

	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 10 * time.Second
	}

	if c.AcquirePollEvery <= 0 {
		c.AcquirePollEvery = 50 * time.Millisecond
	}

	return c
}
