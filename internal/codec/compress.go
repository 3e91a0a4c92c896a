package codec

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Frame tags. The first byte of a packed payload names its encoding; the
// values are persisted in the local cache and must not change.
const (
	tagRaw  byte = 0
	tagZstd byte = 2
)

// CompressThreshold is the smallest payload Pack tries to compress. Ticket
// lists cross it easily; single records usually do not.
const CompressThreshold = 1024

// ErrBadFrame is returned by Unpack for data Pack did not produce.
var ErrBadFrame = errors.New("codec: unknown payload frame")

// zstd.Encoder and zstd.Decoder are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Pack frames payload for storage, compressing it with zstd when it is at
// least CompressThreshold bytes and compression actually shrinks it.
func Pack(payload []byte) []byte {
	if len(payload) >= CompressThreshold {
		compressed := zstdEncoder.EncodeAll(payload, make([]byte, 1, len(payload)/2+1))
		if len(compressed) < len(payload)+1 {
			compressed[0] = tagZstd
			return compressed
		}
	}
	out := make([]byte, 1+len(payload))
	out[0] = tagRaw
	copy(out[1:], payload)
	return out
}

// Unpack reverses Pack.
func Unpack(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, ErrBadFrame
	}
	switch framed[0] {
	case tagRaw:
		return framed[1:], nil
	case tagZstd:
		out, err := zstdDecoder.DecodeAll(framed[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrBadFrame, framed[0])
	}
}

// Compressed reports whether framed holds a compressed payload.
func Compressed(framed []byte) bool {
	return len(framed) > 0 && framed[0] == tagZstd
}
