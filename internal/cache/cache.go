// Package cache provides the filesystem cache used between development
// builds. Entries are opaque byte slices addressed by content derived keys.
package cache

import (
	"encoding/binary"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

// Cache is the byte store used by the build stages.
type Cache = httpcache.Cache

// New returns a disk backed cache rooted at dir when enabled, otherwise a
// cache that never stores anything.
func New(enabled bool, dir string) Cache {
	if !enabled {
		return Nop{}
	}
	if dir == "" {
		log.Debug().Msg("No cache directory configured, using in-memory cache")
		return httpcache.NewMemoryCache()
	}
	log.Debug().Str("dir", dir).Msg("Using filesystem cache")
	return diskcache.New(dir)
}

// Key derives a cache key from content and a variant label (e.g. "webp:q80").
func Key(content []byte, variant string) string {
	h := crc64nvme.New()
	h.Write(content)

	buf := make([]byte, 8, 8+len(variant))
	binary.BigEndian.PutUint64(buf, h.Sum64())
	buf = append(buf, variant...)

	return base58.Encode(buf)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Get(string) ([]byte, bool) { return nil, false }
func (Nop) Set(string, []byte)        {}
func (Nop) Delete(string)             {}
