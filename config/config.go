// Package config encodes and decodes the on-disk tree configuration
// record (spec §6): a fixed little-endian binary layout, not a generic
// serialization format, because it must round-trip bit-for-bit and is
// read by a CLI and the library alike without either depending on the
// other's schema conventions.
package config

import (
	"bytes"
	"encoding/binary"

	"github.com/beetdb/beet/berrors"
)

// IndexType selects what a tree's leaf values mean.
type IndexType uint32

const (
	Null  IndexType = 1
	Plain IndexType = 2
	Host  IndexType = 3
)

func (t IndexType) String() string {
	switch t {
	case Null:
		return "NULL"
	case Plain:
		return "PLAIN"
	case Host:
		return "HOST"
	default:
		return "UNKNOWN"
	}
}

const (
	magic          uint32 = 0x8EE70001 // top 16 bits 0x8EE7, bottom 16 bits version 1
	magicMask      uint32 = 0xFFFF0000
	versionMask    uint32 = 0x0000FFFF
	supportedMagic uint32 = 0x8EE70000
	supportedVer   uint32 = 1

	// Cache size sentinels (signed field encoding, spec §6).
	CacheUnlimited   int32 = 0
	CacheDefault     int32 = -1
	CacheIgnoreOnOpen int32 = -2

	fixedHeaderSize = 40
)

// Config is the decoded form of the on-disk config record.
type Config struct {
	IndexType     IndexType
	LeafPageSize  uint32
	IntPageSize   uint32
	LeafNodeSize  uint32
	IntNodeSize   uint32
	KeySize       uint32
	DataSize      uint32
	LeafCacheSize int32
	IntCacheSize  int32

	SubPath     string
	CompareName string
	RscInitName string
	RscDestName string
}

// Encode serializes cfg into the exact byte layout spec §6 describes.
func (cfg Config) Encode() []byte {
	buf := make([]byte, fixedHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(cfg.IndexType))
	binary.LittleEndian.PutUint32(buf[8:12], cfg.LeafPageSize)
	binary.LittleEndian.PutUint32(buf[12:16], cfg.IntPageSize)
	binary.LittleEndian.PutUint32(buf[16:20], cfg.LeafNodeSize)
	binary.LittleEndian.PutUint32(buf[20:24], cfg.IntNodeSize)
	binary.LittleEndian.PutUint32(buf[24:28], cfg.KeySize)
	binary.LittleEndian.PutUint32(buf[28:32], cfg.DataSize)
	binary.LittleEndian.PutUint32(buf[32:36], uint32(cfg.LeafCacheSize))
	binary.LittleEndian.PutUint32(buf[36:40], uint32(cfg.IntCacheSize))

	for _, s := range []string{cfg.SubPath, cfg.CompareName, cfg.RscInitName, cfg.RscDestName} {
		buf = append(buf, []byte(s)...)
		buf = append(buf, 0)
	}
	return buf
}

// Decode parses raw into a Config, validating the magic/version header.
func Decode(raw []byte) (Config, *berrors.BeetError) {
	var cfg Config
	if len(raw) < fixedHeaderSize {
		return cfg, berrors.New(berrors.BadConfig, "config record too short")
	}

	m := binary.LittleEndian.Uint32(raw[0:4])
	if m&magicMask != supportedMagic {
		return cfg, berrors.New(berrors.NoMagic, "bad config magic")
	}
	if m&versionMask != supportedVer {
		return cfg, berrors.Newf(berrors.UnknownVersion, "unsupported config version %d", m&versionMask)
	}

	cfg.IndexType = IndexType(binary.LittleEndian.Uint32(raw[4:8]))
	switch cfg.IndexType {
	case Null, Plain, Host:
	default:
		return cfg, berrors.Newf(berrors.UnknownType, "unknown index type %d", cfg.IndexType)
	}
	cfg.LeafPageSize = binary.LittleEndian.Uint32(raw[8:12])
	cfg.IntPageSize = binary.LittleEndian.Uint32(raw[12:16])
	cfg.LeafNodeSize = binary.LittleEndian.Uint32(raw[16:20])
	cfg.IntNodeSize = binary.LittleEndian.Uint32(raw[20:24])
	cfg.KeySize = binary.LittleEndian.Uint32(raw[24:28])
	cfg.DataSize = binary.LittleEndian.Uint32(raw[28:32])
	cfg.LeafCacheSize = int32(binary.LittleEndian.Uint32(raw[32:36]))
	cfg.IntCacheSize = int32(binary.LittleEndian.Uint32(raw[36:40]))

	tail := raw[fixedHeaderSize:]
	strs := make([]string, 4)
	for i := 0; i < 4; i++ {
		nul := bytes.IndexByte(tail, 0)
		if nul < 0 {
			return cfg, berrors.New(berrors.BadConfig, "unterminated string in config record")
		}
		strs[i] = string(tail[:nul])
		tail = tail[nul+1:]
	}
	cfg.SubPath, cfg.CompareName, cfg.RscInitName, cfg.RscDestName = strs[0], strs[1], strs[2], strs[3]
	return cfg, nil
}
