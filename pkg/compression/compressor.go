// Package compression detects and undoes the compression wrapped around
// fetched input objects, and can apply it to staged artifacts.
//
// # Overview
//
// Object-store exports are often shipped as gzip, zstd, lz4 or framed snappy.
// Detect recognizes each by its magic bytes, so callers never need to trust
// the object key's extension:
//
//	raw, alg, err := compression.Decompress(data, compression.DefaultMaxSize)
//	if err != nil {
//	    return err
//	}
//	log.Info("fetched", zap.String("compression", string(alg)))
//
// Data that matches no signature is returned unchanged with None.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents the framed snappy stream format
	Snappy Algorithm = "snappy"
	// LZ4 represents the lz4 frame format
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
)

// DefaultMaxSize bounds decompressed output
const DefaultMaxSize int64 = 2 << 30

var signatures = []struct {
	alg   Algorithm
	magic []byte
}{
	{Gzip, []byte{0x1f, 0x8b}},
	{Zstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{LZ4, []byte{0x04, 0x22, 0x4d, 0x18}},
	// snappy and S2 stream identifier chunks; s2.Reader accepts both
	{Snappy, []byte("\xff\x06\x00\x00sNaPpY")},
	{Snappy, []byte("\xff\x06\x00\x00S2sTwO")},
}

// Detect returns the algorithm whose signature data starts with, or None.
func Detect(data []byte) Algorithm {
	for _, s := range signatures {
		if bytes.HasPrefix(data, s.magic) {
			return s.alg
		}
	}
	return None
}

// FromExtension maps an object key's extension to an algorithm, or None.
func FromExtension(key string) Algorithm {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	case ".lz4":
		return LZ4
	case ".sz", ".snappy":
		return Snappy
	default:
		return None
	}
}

// TrimExtension strips a compression extension from key, so "a.json.gz"
// becomes "a.json".
func TrimExtension(key string) string {
	if FromExtension(key) == None {
		return key
	}
	return strings.TrimSuffix(key, filepath.Ext(key))
}

// ParseAlgorithm validates s as an Algorithm. The empty string is None.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(s)); a {
	case "":
		return None, nil
	case None, Gzip, Snappy, LZ4, Zstd:
		return a, nil
	default:
		return "", fmt.Errorf("unsupported compression algorithm: %s", s)
	}
}

// Decompress detects the algorithm of data and decompresses it, refusing
// output larger than maxSize bytes. maxSize <= 0 means DefaultMaxSize.
func Decompress(data []byte, maxSize int64) ([]byte, Algorithm, error) {
	alg := Detect(data)
	if alg == None {
		return data, None, nil
	}
	out, err := DecompressAs(alg, data, maxSize)
	return out, alg, err
}

// DecompressAs decompresses data with a known algorithm.
func DecompressAs(alg Algorithm, data []byte, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	var r io.Reader
	switch alg {
	case None:
		return data, nil
	case Gzip:
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gr.Close()
		r = gr
	case Zstd:
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		r = dec
	case LZ4:
		r = lz4.NewReader(bytes.NewReader(data))
	case Snappy:
		r = s2.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", alg)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", alg, err)
	}
	if n > maxSize {
		return nil, fmt.Errorf("%s: decompressed size exceeds %d bytes", alg, maxSize)
	}
	return buf.Bytes(), nil
}

// Compress compresses data with alg.
func Compress(alg Algorithm, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := CompressStream(alg, &buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CompressStream compresses from src to dst with alg.
func CompressStream(alg Algorithm, dst io.Writer, src io.Reader) error {
	var w io.WriteCloser
	switch alg {
	case None:
		_, err := io.Copy(dst, src)
		return err
	case Gzip:
		w = gzip.NewWriter(dst)
	case Zstd:
		enc, err := zstd.NewWriter(dst)
		if err != nil {
			return err
		}
		w = enc
	case LZ4:
		w = lz4.NewWriter(dst)
	case Snappy:
		w = s2.NewWriter(dst, s2.WriterSnappyCompat())
	default:
		return fmt.Errorf("unsupported compression algorithm: %s", alg)
	}

	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Extension returns the conventional file extension for alg, with its dot.
func (a Algorithm) Extension() string {
	switch a {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	case Snappy:
		return ".sz"
	default:
		return ""
	}
}
