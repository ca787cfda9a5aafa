package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordlicht/goudsstack/pkg/config"
)

const sample = `
[server]
p2_ms = 20
s3_ms = 4000

[client]
p2_star_ms = 6000

[transport]
kind = cansock
iface = can0
phys_tx_id = 0x7E0
phys_rx_id = 0x7E8

[F190]
name = VIN
default_string = W0L0000043MB541326

[F18C]
name = ECU Serial Number
default_hex = 01 02 03 04
`

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := config.Load([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, int64(20), cfg.Server.P2Ms)
	assert.Equal(t, int64(4000), cfg.Server.S3Ms)
	assert.Equal(t, int64(5000), cfg.Server.P2StarMs, "unset key keeps its compiled-in default")

	assert.Equal(t, int64(6000), cfg.Client.P2StarMs)

	assert.Equal(t, "cansock", cfg.Transport.Kind)
	assert.Equal(t, "can0", cfg.Transport.Iface)
	assert.Equal(t, uint32(0x7E0), cfg.Transport.PhysTx)
	assert.Equal(t, uint32(0x7E8), cfg.Transport.PhysRx)

	require.Len(t, cfg.DIDs, 2)
	byID := map[uint16]config.DIDEntry{}
	for _, d := range cfg.DIDs {
		byID[d.ID] = d
	}
	assert.Equal(t, "W0L0000043MB541326", string(byID[0xF190].Default))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, byID[0xF18C].Default)
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := config.Load([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, int64(50), cfg.Server.P2Ms)
	assert.Equal(t, "mock", cfg.Transport.Kind)
	assert.Empty(t, cfg.DIDs)
}
