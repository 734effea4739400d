package lib

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Compression modes. ZLIB is what ActionScript ByteArray.compress() produces.
const (
	CompressionNone = "none"
	CompressionZLIB = "zlib"
	CompressionGZIP = "gzip"
)

var (
	gzipWriters [3]*sync.Pool
	zlibWriters [3]*sync.Pool

	ErrUnknownCompression = fmt.Errorf("unknown compression mode")
)

// level: 0 - default, 1 - best speed, 2 - best size
func flateLevel(level int) (int, int) {
	switch level {
	case 2:
		return 2, flate.BestCompression
	case 1:
		return 1, flate.BestSpeed
	default:
		return 0, flate.DefaultCompression
	}
}

// Compress compresses src with the given mode. The returned buffer is taken
// from the pool, release it with ReleaseBuffer.
func Compress(mode string, src []byte, level int) (*Buffer, error) {
	switch mode {
	case CompressionZLIB:
		return CompressZLIB(src, level)
	case CompressionGZIP:
		return CompressGZIP(src, level)
	case CompressionNone, "":
		dst := TakeBuffer()
		dst.Write(src)
		return dst, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, mode)
}

// Decompress is the reverse of Compress. limit caps the unpacked size (0 - unlimited).
func Decompress(mode string, src []byte, limit int) (*Buffer, error) {
	switch mode {
	case CompressionZLIB:
		return DecompressZLIB(src, limit)
	case CompressionGZIP:
		return DecompressGZIP(src, limit)
	case CompressionNone, "":
		dst := TakeBuffer()
		dst.Write(src)
		return dst, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, mode)
}

// CompressZLIB
func CompressZLIB(src []byte, level int) (*Buffer, error) {
	var zWriter *zlib.Writer

	idx, lev := flateLevel(level)
	zBuffer := TakeBuffer()
	if w, ok := zlibWriters[idx].Get().(*zlib.Writer); ok {
		zWriter = w
		zWriter.Reset(zBuffer)
	} else {
		w, err := zlib.NewWriterLevel(zBuffer, lev)
		if err != nil {
			ReleaseBuffer(zBuffer)
			return nil, err
		}
		zWriter = w
	}
	if _, err := zWriter.Write(src); err != nil {
		ReleaseBuffer(zBuffer)
		return nil, err
	}
	if err := zWriter.Close(); err != nil {
		ReleaseBuffer(zBuffer)
		return nil, err
	}
	zlibWriters[idx].Put(zWriter)
	return zBuffer, nil
}

// CompressGZIP
func CompressGZIP(src []byte, level int) (*Buffer, error) {
	var zWriter *gzip.Writer

	idx, lev := flateLevel(level)
	zBuffer := TakeBuffer()
	if w, ok := gzipWriters[idx].Get().(*gzip.Writer); ok {
		zWriter = w
		zWriter.Reset(zBuffer)
	} else {
		w, err := gzip.NewWriterLevel(zBuffer, lev)
		if err != nil {
			ReleaseBuffer(zBuffer)
			return nil, err
		}
		zWriter = w
	}
	if _, err := zWriter.Write(src); err != nil {
		ReleaseBuffer(zBuffer)
		return nil, err
	}
	if err := zWriter.Close(); err != nil {
		ReleaseBuffer(zBuffer)
		return nil, err
	}
	gzipWriters[idx].Put(zWriter)
	return zBuffer, nil
}

// DecompressZLIB
func DecompressZLIB(src []byte, limit int) (*Buffer, error) {
	reader, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return decompress(reader, limit)
}

// DecompressGZIP
func DecompressGZIP(src []byte, limit int) (*Buffer, error) {
	reader, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return decompress(reader, limit)
}

func decompress(reader io.Reader, limit int) (*Buffer, error) {
	dst := TakeBuffer()
	if err := dst.ReadAllFrom(reader, limit); err != nil {
		ReleaseBuffer(dst)
		return nil, err
	}
	if limit > 0 && dst.Len() > limit {
		ReleaseBuffer(dst)
		return nil, fmt.Errorf("unpacked data exceeds %d bytes", limit)
	}
	return dst, nil
}

func init() {
	for i := range gzipWriters {
		gzipWriters[i] = &sync.Pool{
			New: func() interface{} {
				return nil
			},
		}
		zlibWriters[i] = &sync.Pool{
			New: func() interface{} {
				return nil
			},
		}
	}
}
