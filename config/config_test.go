package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[ServiceMode]bool
		wantErr bool
	}{
		{
			name:  "single service",
			input: "http",
			want:  map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:  "all services",
			input: "http,worker,scheduler,reaper",
			want: map[ServiceMode]bool{
				ServiceModeHTTP:      true,
				ServiceModeWorker:    true,
				ServiceModeScheduler: true,
				ServiceModeReaper:    true,
			},
		},
		{
			name:  "whitespace tolerated",
			input: " http , worker ",
			want: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeWorker: true,
			},
		},
		{
			name:  "duplicates collapse",
			input: "worker,worker",
			want:  map[ServiceMode]bool{ServiceModeWorker: true},
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "only commas",
			input:   ",,",
			wantErr: true,
		},
		{
			name:    "unknown service",
			input:   "http,cron",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServices(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWorkerConfigSanitize(t *testing.T) {
	w := WorkerConfig{Concurrency: 0, DedupeTTL: time.Second}
	w.Sanitize()
	assert.Equal(t, 1, w.Concurrency)
	assert.Equal(t, time.Minute, w.DedupeTTL)

	w = WorkerConfig{Concurrency: 8, DedupeTTL: 48 * time.Hour}
	w.Sanitize()
	assert.Equal(t, 8, w.Concurrency)
	assert.Equal(t, 48*time.Hour, w.DedupeTTL)
}

func TestSchedulerConfigSanitize(t *testing.T) {
	s := SchedulerConfig{Interval: time.Second}
	s.Sanitize()
	assert.Equal(t, time.Minute, s.Interval)
}

func TestReaperConfigSanitize(t *testing.T) {
	t.Run("floors", func(t *testing.T) {
		r := ReaperConfig{}
		r.Sanitize()
		assert.Equal(t, time.Minute, r.Interval)
		assert.Equal(t, time.Hour, r.CreatedMaxAge)
		assert.Equal(t, time.Hour, r.CompletedMaxAge)
		assert.GreaterOrEqual(t, r.BatchSize, 1)
	})

	t.Run("completed window never exceeds created window", func(t *testing.T) {
		r := ReaperConfig{
			Interval:        5 * time.Minute,
			CreatedMaxAge:   48 * time.Hour,
			CompletedMaxAge: 168 * time.Hour,
			BatchSize:       1000,
		}
		r.Sanitize()
		assert.Equal(t, 48*time.Hour, r.CompletedMaxAge)
	})

	t.Run("defaults kept", func(t *testing.T) {
		r := ReaperConfig{
			Interval:        5 * time.Minute,
			CreatedMaxAge:   168 * time.Hour,
			CompletedMaxAge: 72 * time.Hour,
			BatchSize:       1000,
		}
		r.Sanitize()
		assert.Equal(t, 168*time.Hour, r.CreatedMaxAge)
		assert.Equal(t, 72*time.Hour, r.CompletedMaxAge)
	})
}

func TestMetricsConfigSanitize(t *testing.T) {
	t.Run("address trimmed", func(t *testing.T) {
		m := MetricsConfig{Enabled: true, StatsdAddress: "  10.0.0.1:8125  "}
		m.Sanitize()
		assert.Equal(t, "10.0.0.1:8125", m.StatsdAddress)
		assert.True(t, m.IsEnabled())
	})

	t.Run("blank address disables", func(t *testing.T) {
		m := MetricsConfig{Enabled: true, StatsdAddress: "   "}
		m.Sanitize()
		assert.False(t, m.IsEnabled())
	})

	t.Run("disabled stays disabled", func(t *testing.T) {
		m := MetricsConfig{Enabled: false, StatsdAddress: "127.0.0.1:8125"}
		m.Sanitize()
		assert.False(t, m.IsEnabled())
	})
}

func TestAppConfigDevModeFallback(t *testing.T) {
	t.Setenv("ENV", "development")
	var c AppConfig
	c.Sanitize()
	assert.True(t, c.IsDev)

	t.Setenv("ENV", "production")
	c = AppConfig{}
	c.Sanitize()
	assert.False(t, c.IsDev)
}
