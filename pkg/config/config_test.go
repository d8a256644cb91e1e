package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalYAML = `
symbols:
  - symbol: EURUSD
    pip_size: 0.0001
    threshold_pips: 30
    lot_size: 0.1
    volume_step: 0.01
pricefeed:
  base_url: http://127.0.0.1:8787
dry_run: true
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Len(t, cfg.Symbols, 1)
	assert.True(t, cfg.Symbols[0].Tradeable, "tradeable 缺省应该为 true")
	assert.Equal(t, "Etc/GMT-3", cfg.Anchor.ServerTZ)
	assert.Equal(t, 8, cfg.Anchor.Hour)
	assert.Equal(t, time.Second, cfg.Poll)
	assert.Equal(t, 1, cfg.MinStage)
	assert.InDelta(t, 1.00, cfg.Windows.PlaceMin, 1e-9)
	assert.InDelta(t, 2.00, cfg.Windows.CloseMax, 1e-9)
	assert.Equal(t, "PRICEFEED_TOKEN", cfg.Pricefeed.TokenEnv)
	assert.True(t, cfg.DryRun)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"没有品种": `
pricefeed:
  base_url: http://x
dry_run: true
`,
		"pip_size 为零": `
symbols:
  - symbol: EURUSD
    pip_size: 0
    threshold_pips: 30
    lot_size: 0.1
    volume_step: 0.01
pricefeed:
  base_url: http://x
dry_run: true
`,
		"非法时区": `
symbols:
  - symbol: EURUSD
    pip_size: 0.0001
    threshold_pips: 30
    lot_size: 0.1
    volume_step: 0.01
anchor:
  server_tz: Not/AZone
pricefeed:
  base_url: http://x
dry_run: true
`,
		"窗口 min > max": `
symbols:
  - symbol: EURUSD
    pip_size: 0.0001
    threshold_pips: 30
    lot_size: 0.1
    volume_step: 0.01
windows:
  place_min: 1.5
  place_max: 1.0
  close_min: 1.8
  close_max: 2.0
pricefeed:
  base_url: http://x
dry_run: true
`,
		"缺少 pricefeed": `
symbols:
  - symbol: EURUSD
    pip_size: 0.0001
    threshold_pips: 30
    lot_size: 0.1
    volume_step: 0.01
dry_run: true
`,
		"非 dry run 缺少网关": `
symbols:
  - symbol: EURUSD
    pip_size: 0.0001
    threshold_pips: 30
    lot_size: 0.1
    volume_step: 0.01
pricefeed:
  base_url: http://x
dry_run: false
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("POLL_MS", "250")
	t.Setenv("DRY_RUN", "true")

	cfg, err := Load(writeConfig(t, `
symbols:
  - symbol: EURUSD
    pip_size: 0.0001
    threshold_pips: 30
    lot_size: 0.1
    volume_step: 0.01
pricefeed:
  base_url: http://127.0.0.1:8787
poll_ms: 1000
dry_run: false
`))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll)
	assert.True(t, cfg.DryRun, "环境变量应该覆盖配置文件")
}

func TestLoad_ExplicitWindows(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
symbols:
  - symbol: EURUSD
    pip_size: 0.0001
    threshold_pips: 30
    lot_size: 0.1
    volume_step: 0.01
windows:
  place_min: 0.9
  place_max: 1.3
  close_min: 1.7
  close_max: 2.1
pricefeed:
  base_url: http://127.0.0.1:8787
dry_run: true
`))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, cfg.Windows.PlaceMin, 1e-9)
	assert.InDelta(t, 2.1, cfg.Windows.CloseMax, 1e-9)
}
