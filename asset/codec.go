package asset

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(MaxDecompressedSize))
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// compress returns the encoded payload. ok is false when the codec could
// not shrink the data and the payload should be stored as is.
func compress(codec Codec, src []byte) (out []byte, ok bool, err error) {
	switch codec {
	case CodecNone:
		return src, false, nil

	case CodecLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(src)))
		n, err := lz4.CompressBlock(src, dst, nil)
		if err != nil {
			return nil, false, fmt.Errorf("asset: lz4: %w", err)
		}
		if n == 0 || n >= len(src) {
			return src, false, nil
		}
		return dst[:n], true, nil

	case CodecZstd:
		enc, _, err := zstdCodecs()
		if err != nil {
			return nil, false, fmt.Errorf("asset: zstd: %w", err)
		}
		out := enc.EncodeAll(src, nil)
		if len(out) >= len(src) {
			return src, false, nil
		}
		return out, true, nil
	}
	return nil, false, fmt.Errorf("asset: unknown codec %d", codec)
}

// decompress expands payload to exactly size bytes. Sizes past
// MaxDecompressedSize are refused before anything is allocated.
func decompress(codec Codec, payload []byte, size uint32) ([]byte, error) {
	if size > MaxDecompressedSize {
		return nil, fmt.Errorf("%w: declared size %d exceeds %d", ErrDecompress, size, MaxDecompressedSize)
	}
	switch codec {
	case CodecLZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrDecompress, err)
		}
		if n != int(size) {
			return nil, fmt.Errorf("%w: lz4: got %d bytes, header declares %d", ErrDecompress, n, size)
		}
		return dst, nil

	case CodecZstd:
		_, dec, err := zstdCodecs()
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrDecompress, err)
		}
		out, err := dec.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrDecompress, err)
		}
		if len(out) != int(size) {
			return nil, fmt.Errorf("%w: zstd: got %d bytes, header declares %d", ErrDecompress, len(out), size)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown codec", ErrDecompress)
}
