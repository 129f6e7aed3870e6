// internal/memory/bundle.go
package memory

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/lumix-ai/hopfield/internal/core"
)

// Bundle layout: 16-byte little-endian header
//   magic "HOPF" | version | pattern size | count
// followed by a zstd stream of records
//   uint16 name length | name | ceil(size/8) packed bytes, bit i at byte i/8, bit i%8
const (
	bundleMagic   uint32 = 0x46504F48 // "HOPF"
	bundleVersion uint32 = 1
)

var ErrBadBundle = errors.New("memory: invalid pattern bundle")

// Export writes every stored pattern to w.
func (s *Store) Export(ctx context.Context, w io.Writer) (int, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	header := make([]byte, 16)
	binary.LittleEndian.PutUint32(header[0:4], bundleMagic)
	binary.LittleEndian.PutUint32(header[4:8], bundleVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(s.size))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(entries)))
	if _, err := w.Write(header); err != nil {
		return 0, err
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if len(e.Name) > 0xFFFF {
			enc.Close()
			return 0, fmt.Errorf("pattern name too long: %d bytes", len(e.Name))
		}
		if err := binary.Write(enc, binary.LittleEndian, uint16(len(e.Name))); err != nil {
			enc.Close()
			return 0, err
		}
		if _, err := io.WriteString(enc, e.Name); err != nil {
			enc.Close()
			return 0, err
		}
		if _, err := enc.Write(packBits(e.Pattern)); err != nil {
			enc.Close()
			return 0, err
		}
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}

	log.Debug().Int("patterns", len(entries)).Msg("Pattern bundle exported")
	return len(entries), nil
}

// Import adds every pattern in the bundle. Names already stored are skipped.
// Returns the number of patterns added. Import is not atomic: on a damaged
// record it stops with ErrBadBundle and keeps the patterns added before it.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	header := make([]byte, 16)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, fmt.Errorf("%w: short header: %v", ErrBadBundle, err)
	}
	if binary.LittleEndian.Uint32(header[0:4]) != bundleMagic {
		return 0, fmt.Errorf("%w: bad magic", ErrBadBundle)
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != bundleVersion {
		return 0, fmt.Errorf("%w: unsupported version %d", ErrBadBundle, v)
	}
	if size := int(binary.LittleEndian.Uint32(header[8:12])); size != s.size {
		return 0, fmt.Errorf("%w: bundle size %d, store size %d: %w", ErrBadBundle, size, s.size, core.ErrDimensionMismatch)
	}
	count := int(binary.LittleEndian.Uint32(header[12:16]))

	dec, err := zstd.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadBundle, err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	added := 0
	packed := make([]byte, (s.size+7)/8)
	for i := 0; i < count; i++ {
		var nameLen uint16
		if err := binary.Read(br, binary.LittleEndian, &nameLen); err != nil {
			return added, fmt.Errorf("%w: record %d: %v", ErrBadBundle, i, err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return added, fmt.Errorf("%w: record %d: %v", ErrBadBundle, i, err)
		}
		if _, err := io.ReadFull(br, packed); err != nil {
			return added, fmt.Errorf("%w: record %d: %v", ErrBadBundle, i, err)
		}

		_, err := s.Add(ctx, string(name), unpackBits(packed, s.size))
		switch {
		case errors.Is(err, ErrPatternExists):
			log.Warn().Str("name", string(name)).Msg("Skipping pattern already in store")
		case err != nil:
			return added, err
		default:
			added++
		}
	}

	log.Debug().Int("patterns", added).Msg("Pattern bundle imported")
	return added, nil
}

func packBits(p core.Pattern) []byte {
	out := make([]byte, (len(p)+7)/8)
	for i, v := range p {
		if v == 1 {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

func unpackBits(b []byte, size int) core.Pattern {
	p := make(core.Pattern, size)
	for i := range p {
		if b[i/8]&(1<<(i%8)) != 0 {
			p[i] = 1
		}
	}
	return p
}
