package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvironment(t *testing.T) {
	// Table-driven test cases
	tests := []struct {
		name             string
		inputEnv         string
		expectedName     string
		expectedAddr     string
		expectedQCap     int
		expectedParallel int
		expectDefault    bool // If true, we expect the fallback (local) config
	}{
		{
			name:             "Get local environment",
			inputEnv:         "local",
			expectedName:     "LOCAL",
			expectedAddr:     "localhost:" + ServerPort,
			expectedQCap:     50,
			expectedParallel: 2,
		},
		{
			name:             "Get remote environment",
			inputEnv:         "remote",
			expectedName:     "REMOTO",
			expectedAddr:     "0.0.0.0:" + ServerPort,
			expectedQCap:     50,
			expectedParallel: 1,
		},
		{
			name:             "Get unknown environment (defaults to local)",
			inputEnv:         "unknown_env",
			expectedName:     "LOCAL",
			expectedAddr:     "localhost:" + ServerPort,
			expectedQCap:     50,
			expectedParallel: 2,
			expectDefault:    true,
		},
		{
			name:             "Get empty environment (defaults to local)",
			inputEnv:         "",
			expectedName:     "LOCAL",
			expectedAddr:     "localhost:" + ServerPort,
			expectedQCap:     50,
			expectedParallel: 2,
			expectDefault:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetEnvironment(tt.inputEnv)

			assert.Equal(t, tt.expectedName, got.Name)
			assert.Equal(t, tt.expectedAddr, got.ListenAddr)
			assert.Equal(t, tt.expectedQCap, got.QueueCapacity)
			assert.Equal(t, tt.expectedParallel, got.MaxConcurrentPrints)

			assert.NotZero(t, got.ReadTimeout)
			assert.NotZero(t, got.WriteTimeout)
			assert.Equal(t, time.Minute, got.PrintTimeout)
			assert.NoError(t, got.Validate())

			if tt.expectDefault {
				assert.Equal(t, environments["local"].Name, got.Name)
			}
		})
	}
}

func TestEnvironment_LogPath(t *testing.T) {
	env := Environment{
		ServiceName: "TestService",
	}
	programData := "/var/lib"
	expected := filepath.Join(programData, "TestService", "TestService.log")

	assert.Equal(t, expected, env.LogPath(programData))
}

func TestEnvironment_Validate(t *testing.T) {
	valid := GetEnvironment("remote")

	tests := []struct {
		name   string
		mutate func(*Environment)
	}{
		{"zero concurrency", func(e *Environment) { e.MaxConcurrentPrints = 0 }},
		{"negative concurrency", func(e *Environment) { e.MaxConcurrentPrints = -3 }},
		{"zero queue", func(e *Environment) { e.QueueCapacity = 0 }},
		{"zero rate", func(e *Environment) { e.JobsPerMinute = 0 }},
		{"negative timeout", func(e *Environment) { e.PrintTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := valid
			tt.mutate(&env)
			assert.Error(t, env.Validate())
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Run("missing file keeps defaults", func(t *testing.T) {
		base := GetEnvironment("remote")
		got, err := LoadOverrides(base, filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, base, got)
	})

	t.Run("applies present fields only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), OverridesFileName)
		content := `
max_concurrent_prints: 4
print_timeout: 90s
sumatra_path: 'C:\Program Files\SumatraPDF\SumatraPDF.exe'
default_printer: '\\printsrv\Bodega'
allowed_origins:
  - https://pos.example.com
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		base := GetEnvironment("remote")
		got, err := LoadOverrides(base, path)
		require.NoError(t, err)

		assert.Equal(t, 4, got.MaxConcurrentPrints)
		assert.Equal(t, 90*time.Second, got.PrintTimeout)
		assert.Equal(t, `C:\Program Files\SumatraPDF\SumatraPDF.exe`, got.SumatraPath)
		assert.Equal(t, `\\printsrv\Bodega`, got.DefaultPrinter)
		assert.Equal(t, []string{"https://pos.example.com"}, got.AllowedOrigins)

		assert.Equal(t, base.ListenAddr, got.ListenAddr)
		assert.Equal(t, base.QueueCapacity, got.QueueCapacity)
		assert.Equal(t, base.Verbose, got.Verbose)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), OverridesFileName)
		require.NoError(t, os.WriteFile(path, []byte("max_concurrent_prints: [1"), 0o600))

		_, err := LoadOverrides(GetEnvironment("local"), path)
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}
