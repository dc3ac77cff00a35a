package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

func (kb *KeyBuilder) KeyStats(tenant string) string {
	return kb.BuildKey(fmt.Sprintf(KeyStats, tenant))
}

func (kb *KeyBuilder) KeyStatusStats(tenant string) string {
	return kb.BuildKey(fmt.Sprintf(KeyStatusStats, tenant))
}

func (kb *KeyBuilder) KeyRunLock(tenant, job string) string {
	return kb.BuildKey(fmt.Sprintf(KeyRunLock, tenant, job))
}

// KeyQuotaUsage is keyed by the Pacific date the quota resets on.
func (kb *KeyBuilder) KeyQuotaUsage(tenant, day string) string {
	return kb.BuildKey(fmt.Sprintf(KeyQuotaUsage, tenant, day))
}
