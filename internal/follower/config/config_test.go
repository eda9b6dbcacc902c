package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvedServerName(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "default",
			cfg:  Config{},
			want: DefaultAuthzServerName,
		},
		{
			name: "current key",
			cfg:  Config{AuthzServerName: "prod-authz"},
			want: "prod-authz",
		},
		{
			name: "deprecated key",
			cfg:  Config{ServerName: "legacy-authz"},
			want: "legacy-authz",
		},
		{
			name: "current key wins over deprecated",
			cfg:  Config{AuthzServerName: "prod-authz", ServerName: "legacy-authz"},
			want: "prod-authz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.ResolvedServerName())
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.TickInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.FetcherCacheSize = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.FullUpdateSubscribeEnabled = true
	cfg.FullUpdateSubject = ""
	assert.Error(t, cfg.Validate())
}
