package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds every process-wide setting SPEC_FULL.md §8 names.
type Config struct {
	LogLevel zerolog.Level

	LDAPURL               string
	LDAPBaseDN            string
	LDAPBindDN            string
	LDAPBindPassword      string
	LDAPPoolSize          int
	LDAPConnectionTTL     time.Duration
	LDAPQueryConcurrency  int
	LDAPCacheMax          int
	LDAPCacheTTL          time.Duration
	LDAPUserMainAttribute string

	TrashBase         string
	TrashWatchedBases []string
	TrashAddMetadata  bool
	TrashAutoCreate   bool

	AuthzPerBranchConfig   string
	AuthzCacheTTL          time.Duration
	AuthzCachePersist      bool
	AuthzCachePath         string
	AuthzGroupBase         string
	AuthzMemberAttribute   string
	AuthzGroupMainAttribute string

	FlatSchemaPaths []string

	PluginManifest string

	APIPrefix string

	AuthBearerTokens map[string]string
	AuthHeader       string

	HTTPAddr string
}

// ValidationError reports one invalid or missing configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

func envStringOrDefault(name, d string) string {
	if v, exists := os.LookupEnv(name); exists && v != "" {
		return v
	}

	return d
}

func envDurationOrDefault(name string, d time.Duration) (time.Duration, error) {
	raw := envStringOrDefault(name, d.String())

	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, ValidationError{Field: name, Message: fmt.Sprintf("could not parse %q as duration: %v", raw, err)}
	}

	return v, nil
}

func envBoolOrDefault(name string, d bool) (bool, error) {
	raw := envStringOrDefault(name, strconv.FormatBool(d))

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, ValidationError{Field: name, Message: fmt.Sprintf("could not parse %q as bool: %v", raw, err)}
	}

	return v, nil
}

func envIntOrDefault(name string, d int) (int, error) {
	raw := envStringOrDefault(name, strconv.Itoa(d))

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ValidationError{Field: name, Message: fmt.Sprintf("could not parse %q as int: %v", raw, err)}
	}

	return v, nil
}

func envListOrDefault(name string, d []string) []string {
	raw, exists := os.LookupEnv(name)
	if !exists || raw == "" {
		return d
	}

	return splitTrim(raw)
}

func splitTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

// parseBearerTokens parses "uid:token,uid2:token2" into a uid-to-token map.
func parseBearerTokens(raw string) (map[string]string, error) {
	out := make(map[string]string)

	for _, pair := range splitTrim(raw) {
		uid, token, ok := strings.Cut(pair, ":")
		if !ok || uid == "" || token == "" {
			return nil, ValidationError{
				Field:   "DM_AUTH_BEARER_TOKENS",
				Message: fmt.Sprintf("entry %q must have the shape uid:token", pair),
			}
		}

		out[uid] = token
	}

	return out, nil
}

func validateRequired(name string, value string) error {
	if value == "" {
		return ValidationError{Field: name, Message: "this option is required"}
	}

	return nil
}

// Parse loads .env.local/.env, then reads every DM_-prefixed variable
// (SPEC_FULL.md §8), validating required fields and value formats.
func Parse() (*Config, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	logLevelStr := envStringOrDefault("DM_LOG_LEVEL", zerolog.InfoLevel.String())

	logLevel, err := zerolog.ParseLevel(logLevelStr)
	if err != nil {
		return nil, ValidationError{Field: "DM_LOG_LEVEL", Message: err.Error()}
	}

	poolSize, err := envIntOrDefault("DM_LDAP_POOL_SIZE", 5)
	if err != nil {
		return nil, err
	}

	connectionTTL, err := envDurationOrDefault("DM_LDAP_CONNECTION_TTL", 60*time.Second)
	if err != nil {
		return nil, err
	}

	queryConcurrency, err := envIntOrDefault("DM_LDAP_QUERY_CONCURRENCY", 10)
	if err != nil {
		return nil, err
	}

	cacheMax, err := envIntOrDefault("DM_LDAP_CACHE_MAX", 1000)
	if err != nil {
		return nil, err
	}

	cacheTTL, err := envDurationOrDefault("DM_LDAP_CACHE_TTL", 300*time.Second)
	if err != nil {
		return nil, err
	}

	trashAddMetadata, err := envBoolOrDefault("DM_TRASH_ADD_METADATA", true)
	if err != nil {
		return nil, err
	}

	trashAutoCreate, err := envBoolOrDefault("DM_TRASH_AUTO_CREATE", true)
	if err != nil {
		return nil, err
	}

	authzCacheTTL, err := envDurationOrDefault("DM_AUTHZ_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	authzCachePersist, err := envBoolOrDefault("DM_AUTHZ_CACHE_PERSIST", false)
	if err != nil {
		return nil, err
	}

	bearerTokens, err := parseBearerTokens(envStringOrDefault("DM_AUTH_BEARER_TOKENS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel: logLevel,

		LDAPURL:               envStringOrDefault("DM_LDAP_URL", ""),
		LDAPBaseDN:            envStringOrDefault("DM_LDAP_BASE_DN", ""),
		LDAPBindDN:            envStringOrDefault("DM_LDAP_BIND_DN", ""),
		LDAPBindPassword:      envStringOrDefault("DM_LDAP_BIND_PASSWORD", ""),
		LDAPPoolSize:          poolSize,
		LDAPConnectionTTL:     connectionTTL,
		LDAPQueryConcurrency:  queryConcurrency,
		LDAPCacheMax:          cacheMax,
		LDAPCacheTTL:          cacheTTL,
		LDAPUserMainAttribute: envStringOrDefault("DM_LDAP_USER_MAIN_ATTRIBUTE", "uid"),

		TrashBase:         envStringOrDefault("DM_TRASH_BASE", ""),
		TrashWatchedBases: envListOrDefault("DM_TRASH_WATCHED_BASES", nil),
		TrashAddMetadata:  trashAddMetadata,
		TrashAutoCreate:   trashAutoCreate,

		AuthzPerBranchConfig:    envStringOrDefault("DM_AUTHZ_PER_BRANCH_CONFIG", ""),
		AuthzCacheTTL:           authzCacheTTL,
		AuthzCachePersist:       authzCachePersist,
		AuthzCachePath:          envStringOrDefault("DM_AUTHZ_CACHE_PATH", "authz-cache.bbolt"),
		AuthzGroupBase:          envStringOrDefault("DM_AUTHZ_GROUP_BASE", ""),
		AuthzMemberAttribute:    envStringOrDefault("DM_AUTHZ_MEMBER_ATTRIBUTE", "member"),
		AuthzGroupMainAttribute: envStringOrDefault("DM_AUTHZ_GROUP_MAIN_ATTRIBUTE", "cn"),

		FlatSchemaPaths: envListOrDefault("DM_LDAP_FLAT_SCHEMA", nil),

		PluginManifest: envStringOrDefault("DM_PLUGIN_MANIFEST", ""),

		APIPrefix: envStringOrDefault("DM_API_PREFIX", "/api/v1"),

		AuthBearerTokens: bearerTokens,
		AuthHeader:       envStringOrDefault("DM_AUTH_HEADER", ""),

		HTTPAddr: envStringOrDefault("DM_HTTP_ADDR", ":3000"),
	}

	if err := validateRequired("DM_LDAP_URL", cfg.LDAPURL); err != nil {
		return nil, err
	}

	if err := validateRequired("DM_LDAP_BASE_DN", cfg.LDAPBaseDN); err != nil {
		return nil, err
	}

	if len(cfg.FlatSchemaPaths) == 0 {
		return nil, ValidationError{Field: "DM_LDAP_FLAT_SCHEMA", Message: "at least one schema file is required"}
	}

	if len(cfg.AuthBearerTokens) == 0 && cfg.AuthHeader == "" {
		return nil, ValidationError{
			Field:   "DM_AUTH_BEARER_TOKENS",
			Message: "either DM_AUTH_BEARER_TOKENS or DM_AUTH_HEADER must be set",
		}
	}

	return cfg, nil
}
