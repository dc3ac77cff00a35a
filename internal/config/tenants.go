package config

import (
	"fmt"

	"github.com/samber/lo"

	"bgm-radar/internal/filter"
)

// Tenant is one independently budgeted collection account.
type Tenant struct {
	ID                string                  `koanf:"id"`
	APIKey            string                  `koanf:"api_key"`
	KeywordCount      int                     `koanf:"keyword_count"`
	VideosPerKeyword  int                     `koanf:"videos_per_keyword"`
	MaxChannelsPerRun int                     `koanf:"max_channels_per_run"`
	Admission         *filter.AdmissionConfig `koanf:"admission"`
	Keywords          []string                `koanf:"keywords"`
	Disabled          bool                    `koanf:"disabled"`
}

// Preset merges the tenant's own settings over base.
func (t Tenant) Preset(base Preset) Preset {
	if t.KeywordCount > 0 {
		base.KeywordCount = t.KeywordCount
	}
	if t.VideosPerKeyword > 0 {
		base.VideosPerKeyword = t.VideosPerKeyword
	}
	if t.MaxChannelsPerRun > 0 {
		base.MaxChannelsPerRun = t.MaxChannelsPerRun
	}
	if t.Admission != nil {
		base.Admission = *t.Admission
	}
	return base
}

// LoadTenants reads tenants from TENANTS_FILE, or derives one per key in YOUTUBE_API_KEYS.
// Tenants with invalid keys or the disabled flag are dropped.
func LoadTenants(cfg *Config) ([]Tenant, error) {
	var tenants []Tenant
	switch {
	case cfg.TenantsFile != "":
		k, err := LoadFile(cfg.TenantsFile)
		if err != nil {
			return nil, err
		}
		if err := k.Unmarshal("tenants", &tenants); err != nil {
			return nil, fmt.Errorf("failed to parse tenants: %w", err)
		}
	case len(cfg.TenantAPIKeys) > 0:
		tenants = lo.Map(cfg.TenantAPIKeys, func(key string, i int) Tenant {
			return Tenant{ID: fmt.Sprintf("tenant-%d", i+1), APIKey: key}
		})
	}

	return lo.Filter(tenants, func(t Tenant, _ int) bool {
		return !t.Disabled && t.ID != "" && ValidateAPIKey(t.APIKey) == nil
	}), nil
}

// SplitBatches partitions tenants into consecutive groups of size.
func SplitBatches(tenants []Tenant, size int) [][]Tenant {
	if size <= 0 {
		size = 1
	}
	return lo.Chunk(tenants, size)
}
