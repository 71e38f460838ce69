package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/meridian/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{name: "json stdout", cfg: config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}},
		{name: "console stderr", cfg: config.LoggingConfig{Level: "DEBUG", Format: "console", Output: "stderr"}},
		{name: "bad level", cfg: config.LoggingConfig{Level: "chatty"}, wantErr: true},
		{name: "bad output", cfg: config.LoggingConfig{Level: "info", Output: "/var/log/x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}

func TestBuild_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := build(&buf, "json", time.RFC3339)
	logger.Info().Str("service", "user").Msg("user created")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "user", entry["service"])
	require.Equal(t, "user created", entry["message"])
	require.Contains(t, entry, "time")
}
