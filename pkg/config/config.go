// Package config loads UDS stack timing, transport and demo
// data-identifier parameters from an INI file, the same format and
// library (gopkg.in/ini.v1) the teacher uses to parse EDS device
// description files.
package config

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/nordlicht/goudsstack/pkg/client"
	iso "github.com/nordlicht/goudsstack/pkg/isotp"
	"github.com/nordlicht/goudsstack/pkg/server"
)

// DIDEntry describes one demo data identifier: the initial value
// cmd/udssrv serves ReadDataByIdentifier/WriteDataByIdentifier requests
// for out of memory, with no backing hardware.
type DIDEntry struct {
	ID      uint16
	Name    string
	Default []byte
}

// Transport names the [transport] section's interface selection.
type Transport struct {
	Kind   string // "mock" or "cansock"
	Iface  string // e.g. "can0", only meaningful for "cansock"
	PhysTx uint32
	PhysRx uint32
	FuncTx uint32
	FuncRx uint32
}

// Config aggregates every section this stack's CLIs need.
type Config struct {
	Server    server.Config
	Client    client.Config
	ISOTP     iso.Config
	Transport Transport
	DIDs      []DIDEntry
}

var didSectionName = regexp.MustCompile(`^[0-9A-Fa-f]{4}$`)

// Load parses file (a path, []byte, or io.Reader, per ini.Load's own
// contract) into a Config, starting from each section's compiled-in
// defaults and overriding only the keys present. Any top-level section
// whose name is four hex digits is read as a DIDEntry.
func Load(file any) (*Config, error) {
	f, err := ini.Load(file)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: server.DefaultConfig(),
		Client: client.DefaultConfig(),
		ISOTP:  iso.DefaultConfig(),
		Transport: Transport{
			Kind:   "mock",
			PhysTx: 0x7E0, PhysRx: 0x7E8,
			FuncTx: 0x7DF, FuncRx: 0x7E8,
		},
	}

	if sec, err := f.GetSection("server"); err == nil {
		loadServerSection(sec, &cfg.Server)
	}
	if sec, err := f.GetSection("client"); err == nil {
		loadClientSection(sec, &cfg.Client)
	}
	if sec, err := f.GetSection("isotp"); err == nil {
		loadISOTPSection(sec, &cfg.ISOTP)
	}
	if sec, err := f.GetSection("transport"); err == nil {
		loadTransportSection(sec, &cfg.Transport)
	}

	dids, err := loadDIDs(f)
	if err != nil {
		return nil, err
	}
	cfg.DIDs = dids

	return cfg, nil
}

// intKey parses key with base 0 (so "0x7E0" and "0600" read as hex/octal,
// matching how an EDS's own numeric fields are written), falling back to
// def if the key is absent or malformed.
func intKey(sec *ini.Section, key string, def int64) int64 {
	if !sec.HasKey(key) {
		return def
	}
	v, err := strconv.ParseInt(sec.Key(key).Value(), 0, 64)
	if err != nil {
		return def
	}
	return v
}

func loadServerSection(sec *ini.Section, c *server.Config) {
	c.P2Ms = intKey(sec, "p2_ms", c.P2Ms)
	c.P2StarMs = intKey(sec, "p2_star_ms", c.P2StarMs)
	c.S3Ms = intKey(sec, "s3_ms", c.S3Ms)
	c.PowerDownTimeMs = intKey(sec, "power_down_time_ms", c.PowerDownTimeMs)
	c.SecAccessBootDelayMs = intKey(sec, "sec_access_boot_delay_ms", c.SecAccessBootDelayMs)
	c.SecAccessAuthFailMs = intKey(sec, "sec_access_auth_fail_ms", c.SecAccessAuthFailMs)
	c.XferDataMaxBlockLen = int(intKey(sec, "xfer_data_max_block_len", int64(c.XferDataMaxBlockLen)))
	c.RespBufSize = int(intKey(sec, "resp_buf_size", int64(c.RespBufSize)))
}

func loadClientSection(sec *ini.Section, c *client.Config) {
	c.P2Ms = intKey(sec, "p2_ms", c.P2Ms)
	c.P2StarMs = intKey(sec, "p2_star_ms", c.P2StarMs)
}

func loadISOTPSection(sec *ini.Section, c *iso.Config) {
	c.BlockSize = uint8(intKey(sec, "block_size", int64(c.BlockSize)))
	c.STMinUs = uint32(intKey(sec, "st_min_us", int64(c.STMinUs)))
	c.MaxWFT = uint8(intKey(sec, "max_wft", int64(c.MaxWFT)))
	c.TimeoutUs = uint32(intKey(sec, "timeout_us", int64(c.TimeoutUs)))
	c.Pad = sec.Key("pad").MustBool(c.Pad)
	c.PadByte = byte(intKey(sec, "pad_byte", int64(c.PadByte)))
}

func loadTransportSection(sec *ini.Section, t *Transport) {
	t.Kind = sec.Key("kind").MustString(t.Kind)
	t.Iface = sec.Key("iface").MustString(t.Iface)
	t.PhysTx = uint32(intKey(sec, "phys_tx_id", int64(t.PhysTx)))
	t.PhysRx = uint32(intKey(sec, "phys_rx_id", int64(t.PhysRx)))
	t.FuncTx = uint32(intKey(sec, "func_tx_id", int64(t.FuncTx)))
	t.FuncRx = uint32(intKey(sec, "func_rx_id", int64(t.FuncRx)))
}

func loadDIDs(f *ini.File) ([]DIDEntry, error) {
	var out []DIDEntry
	for _, sec := range f.Sections() {
		name := sec.Name()
		if !didSectionName.MatchString(name) {
			continue
		}
		idx, err := strconv.ParseUint(name, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("config: bad data identifier section %q: %w", name, err)
		}

		entry := DIDEntry{ID: uint16(idx), Name: sec.Key("name").String()}
		switch {
		case sec.HasKey("default_string"):
			entry.Default = []byte(sec.Key("default_string").String())
		case sec.HasKey("default_hex"):
			raw := strings.ReplaceAll(sec.Key("default_hex").String(), " ", "")
			data, err := hex.DecodeString(raw)
			if err != nil {
				return nil, fmt.Errorf("config: bad default_hex for %q: %w", name, err)
			}
			entry.Default = data
		}
		out = append(out, entry)
	}
	return out, nil
}
