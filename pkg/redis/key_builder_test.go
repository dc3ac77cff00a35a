package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyBuilder_Environment_Prefixes(t *testing.T) {
	tests := []struct {
		name           string
		environment    string
		expectedPrefix string
	}{
		{"production uses prod", "production", "prod"},
		{"development uses staging", "development", "staging"},
		{"staging uses staging", "staging", "staging"},
		{"unknown defaults to prod", "unknown", "prod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedPrefix, NewKeyBuilder(tt.environment).GetPrefix())
		})
	}
}

func TestKeyBuilder_Keys(t *testing.T) {
	kb := NewKeyBuilder("production")

	assert.Equal(t, "prod:bgm:default:stats", kb.KeyStats("default"))
	assert.Equal(t, "prod:bgm:default:stats:status", kb.KeyStatusStats("default"))
	assert.Equal(t, "prod:bgm:tenant-1:lock:collect", kb.KeyRunLock("tenant-1", "collect"))
	assert.Equal(t, "prod:bgm:default:quota:2024-06-01", kb.KeyQuotaUsage("default", "2024-06-01"))
}
