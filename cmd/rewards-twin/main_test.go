package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MrEthical07/goRewards/internal/twin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlSeed = `
subscriptions:
  sub-yaml:
    referralCode: YAML01
    addresses:
      - "0x1111111111111111111111111111111111111111"
balances:
  sub-yaml:
    season-1:
      points: 1200
      tierId: silver
geoLocation: CA-QC
`

func writeSeed(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadSeedConvertsYAML(t *testing.T) {
	data, err := readSeed(writeSeed(t, "seed.yaml", yamlSeed))
	require.NoError(t, err)

	store := twin.New()
	require.NoError(t, store.LoadState(data))

	sub, ok := store.Subscription("sub-yaml")
	require.True(t, ok)
	assert.Equal(t, "YAML01", sub.ReferralCode)
	assert.True(t, store.ReferralCodeValid("YAML01"))
	assert.Equal(t, int64(1200), store.Balance("sub-yaml", "season-1").Points)
	assert.Equal(t, "CA-QC", store.GeoLocation())
}

func TestReadSeedPassesJSONThrough(t *testing.T) {
	raw := `{"geoLocation":"US"}`
	data, err := readSeed(writeSeed(t, "seed.json", raw))
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(data))
}

func TestReadSeedErrors(t *testing.T) {
	_, err := readSeed(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = readSeed(writeSeed(t, "bad.yml", "subscriptions: [unclosed"))
	assert.Error(t, err)
}
