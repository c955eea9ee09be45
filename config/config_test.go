package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/meikuraledutech/pipeline/editor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "PIPELINE_LISTEN", "PIPELINE_DRIVER"} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		env     map[string]string
		wantErr string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "yaml",
			file: "pipeline.yaml",
			content: `
listen: ":8080"
driver: sqlite
database_url: ./data/pipelines.db
log_level: debug
layout:
  orientation: vertical
  rank_spacing: 60
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":8080", cfg.Listen)
				assert.Equal(t, DriverSQLite, cfg.Driver)
				assert.Equal(t, log.DebugLevel, cfg.Level())
				assert.Equal(t, editor.Vertical, cfg.Layout.Orientation)
				assert.Equal(t, 60.0, cfg.Layout.RankSpacing)
				assert.Equal(t, 220.0, cfg.Layout.NodeWidth)
			},
		},
		{
			name: "toml",
			file: "pipeline.toml",
			content: `
driver = "postgres"
database_url = "postgres://localhost/pipelines"

[layout]
node_width = 180.0
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":3000", cfg.Listen)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, 180.0, cfg.Layout.NodeWidth)
				assert.Equal(t, editor.Horizontal, cfg.Layout.Orientation)
			},
		},
		{
			name:    "env interpolation",
			file:    "pipeline.yml",
			content: "database_url: postgres://${DB_USER}@db/pipelines\n",
			env:     map[string]string{"DB_USER": "etl"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres://etl@db/pipelines", cfg.DatabaseURL)
			},
		},
		{
			name:    "env overrides file",
			file:    "pipeline.yaml",
			content: "listen: \":8080\"\ndatabase_url: from-file\n",
			env:     map[string]string{"DATABASE_URL": "from-env", "PIPELINE_LISTEN": ":9090", "PIPELINE_DRIVER": "sqlite"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "from-env", cfg.DatabaseURL)
				assert.Equal(t, ":9090", cfg.Listen)
				assert.Equal(t, DriverSQLite, cfg.Driver)
			},
		},
		{
			name:    "missing env var",
			file:    "pipeline.yaml",
			content: "database_url: ${PIPELINE_TEST_UNSET_VAR}\n",
			wantErr: "PIPELINE_TEST_UNSET_VAR",
		},
		{
			name:    "unknown driver",
			file:    "pipeline.yaml",
			content: "driver: mysql\ndatabase_url: x\n",
			wantErr: "driver must be one of",
		},
		{
			name:    "bad orientation",
			file:    "pipeline.yaml",
			content: "database_url: x\nlayout:\n  orientation: diagonal\n",
			wantErr: "orientation",
		},
		{
			name:    "unsupported extension",
			file:    "pipeline.json",
			content: "{}",
			wantErr: "unsupported file extension",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load(writeFile(t, tt.file, tt.content))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)
	_, err := Load("")
	require.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/pipelines")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, editor.DefaultLayoutConfig(), cfg.Layout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
