package embedder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrag-mcp/internal/config"
	"github.com/dshills/docrag-mcp/pkg/types"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.ProviderConfig
		wantErr   string
		wantProv  string
		wantModel string
	}{
		{
			name:      "remote",
			cfg:       config.ProviderConfig{Backend: "remote", APIKey: "k"},
			wantProv:  ProviderRemote,
			wantModel: DefaultModel,
		},
		{
			name:      "default backend is remote",
			cfg:       config.ProviderConfig{APIKey: "k", Model: "m"},
			wantProv:  ProviderRemote,
			wantModel: "m",
		},
		{
			name:     "local case insensitive",
			cfg:      config.ProviderConfig{Backend: "LOCAL", BaseURL: "http://localhost:8000"},
			wantProv: ProviderLocal,
		},
		{
			name:    "remote without key",
			cfg:     config.ProviderConfig{Backend: "remote"},
			wantErr: "embedding.api_key",
		},
		{
			name:    "local without url",
			cfg:     config.ProviderConfig{Backend: "local"},
			wantErr: "embedding.base_url",
		},
		{
			name:    "unknown backend",
			cfg:     config.ProviderConfig{Backend: "gpu"},
			wantErr: "embedding.backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := New(tt.cfg, Options{})
			if tt.wantErr != "" {
				require.Error(t, err)
				var cfgErr *types.ConfigError
				require.True(t, errors.As(err, &cfgErr))
				assert.Equal(t, tt.wantErr, cfgErr.Field)
				assert.ErrorIs(t, err, types.ErrConfig)
				return
			}
			require.NoError(t, err)
			defer emb.Close()

			assert.Equal(t, tt.wantProv, emb.Provider())
			if tt.wantModel != "" {
				assert.Equal(t, tt.wantModel, emb.Model())
			}
		})
	}
}
