// Package snapshot provides canvas snapshot persistence for pixelflut.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/pixelflut-go/internal/core/domain"
	"github.com/yndnr/pixelflut-go/internal/storage/memory"
)

// Magic bytes identify snapshot files.
var magicBytes = []byte("PXFL")

const (
	// Version1 stores all integers big-endian and pixels as R,G,B,A.
	Version1 uint16 = 1

	// CurrentVersion is the version written by Save.
	CurrentVersion = Version1

	// HeaderSize is magic(4) + version(2) + width(4) + height(4).
	HeaderSize = 4 + 2 + 4 + 4

	// RecordSize is the size of one RGBA pixel record.
	RecordSize = 4

	bufferSize = 64 * 1024
)

var (
	ErrNotFound       = errors.New("snapshot: not found")
	ErrFormatMismatch = errors.New("snapshot: format mismatch")

	ErrInvalidMagic       = fmt.Errorf("%w: invalid magic bytes", ErrFormatMismatch)
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported version", ErrFormatMismatch)
	ErrDimensionMismatch  = fmt.Errorf("%w: dimension mismatch", ErrFormatMismatch)
	ErrTruncated          = fmt.Errorf("%w: truncated file", ErrFormatMismatch)
	ErrTrailingData       = fmt.Errorf("%w: trailing data", ErrFormatMismatch)
)

// Header is the fixed-size prefix of a snapshot file.
type Header struct {
	Version uint16 `json:"version" yaml:"version"`
	Width   uint32 `json:"width" yaml:"width"`
	Height  uint32 `json:"height" yaml:"height"`
}

// Info contains metadata about a written or loaded snapshot.
type Info struct {
	Path      string        `json:"path" yaml:"path"`
	Version   uint16        `json:"version" yaml:"version"`
	Width     int           `json:"width" yaml:"width"`
	Height    int           `json:"height" yaml:"height"`
	Size      int64         `json:"size" yaml:"size"`
	CreatedAt int64         `json:"created_at" yaml:"created_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Store reads and writes the snapshot file at a fixed path.
type Store struct {
	path string
}

// NewStore creates a store for path, creating its directory if needed.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	return &Store{path: path}, nil
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Save writes the canvas to a temporary file and renames it over the
// snapshot path. A failed save leaves the previous snapshot untouched.
//
// Writers are not paused, so the file is a best-effort view of the canvas.
func (s *Store) Save(c *memory.Canvas) (*Info, error) {
	start := time.Now()
	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}

	file, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("snapshot: create temp file: %w", err)
	}
	tempPath := file.Name()
	defer os.Remove(tempPath)

	if err := writeCanvas(file, c); err != nil {
		file.Close()
		return nil, err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: close: %w", err)
	}

	stat, err := os.Stat(tempPath)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		return nil, fmt.Errorf("snapshot: rename: %w", err)
	}

	w, h := c.Size()
	return &Info{
		Path:      s.path,
		Version:   CurrentVersion,
		Width:     w,
		Height:    h,
		Size:      stat.Size(),
		CreatedAt: start.UnixMilli(),
		Duration:  time.Since(start),
	}, nil
}

func writeCanvas(w io.Writer, c *memory.Canvas) error {
	bw := bufio.NewWriterSize(w, bufferSize)

	width, height := c.Size()
	var hdr [HeaderSize]byte
	copy(hdr[0:4], magicBytes)
	binary.BigEndian.PutUint16(hdr[4:6], CurrentVersion)
	binary.BigEndian.PutUint32(hdr[6:10], uint32(width))
	binary.BigEndian.PutUint32(hdr[10:14], uint32(height))
	if _, err := bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}

	var writeErr error
	var rec [RecordSize]byte
	c.ForEach(func(_, _ int, color domain.Color) {
		if writeErr != nil {
			return
		}
		binary.BigEndian.PutUint32(rec[:], uint32(color))
		_, writeErr = bw.Write(rec[:])
	})
	if writeErr != nil {
		return fmt.Errorf("snapshot: write pixels: %w", writeErr)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("snapshot: flush: %w", err)
	}
	return nil
}

// Load reads the snapshot into a fresh canvas of the expected size.
//
// A missing file returns ErrNotFound. A file that is not a snapshot, has an
// unknown version, declares other dimensions, or is cut short returns an
// error matching ErrFormatMismatch.
func (s *Store) Load(width, height int) (*memory.Canvas, *Info, error) {
	start := time.Now()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, nil, fmt.Errorf("snapshot: open: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}

	br := bufio.NewReaderSize(f, bufferSize)
	hdr, err := readHeader(br)
	if err != nil {
		return nil, nil, err
	}
	if int(hdr.Width) != width || int(hdr.Height) != height {
		return nil, nil, fmt.Errorf("%w: file is %dx%d, expected %dx%d",
			ErrDimensionMismatch, hdr.Width, hdr.Height, width, height)
	}

	want := int64(HeaderSize) + int64(width)*int64(height)*RecordSize
	switch {
	case stat.Size() < want:
		return nil, nil, fmt.Errorf("%w: %d bytes, expected %d", ErrTruncated, stat.Size(), want)
	case stat.Size() > want:
		return nil, nil, fmt.Errorf("%w: %d bytes, expected %d", ErrTrailingData, stat.Size(), want)
	}

	canvas, err := memory.New(width, height)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: %w", err)
	}

	pixels := make([]uint32, canvas.Len())
	var rec [RecordSize]byte
	for i := range pixels {
		if _, err := io.ReadFull(br, rec[:]); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		pixels[i] = binary.BigEndian.Uint32(rec[:])
	}
	if err := canvas.Load(pixels); err != nil {
		return nil, nil, fmt.Errorf("snapshot: %w", err)
	}

	return canvas, &Info{
		Path:      s.path,
		Version:   hdr.Version,
		Width:     width,
		Height:    height,
		Size:      stat.Size(),
		CreatedAt: stat.ModTime().UnixMilli(),
		Duration:  time.Since(start),
	}, nil
}

// ReadHeader reads only the header of the snapshot file at path.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	defer f.Close()

	hdr, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	return &hdr, nil
}

func readHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: short header", ErrTruncated)
		}
		return Header{}, fmt.Errorf("snapshot: read header: %w", err)
	}
	if !bytes.Equal(buf[0:4], magicBytes) {
		return Header{}, ErrInvalidMagic
	}

	hdr := Header{
		Version: binary.BigEndian.Uint16(buf[4:6]),
		Width:   binary.BigEndian.Uint32(buf[6:10]),
		Height:  binary.BigEndian.Uint32(buf[10:14]),
	}
	if hdr.Version != Version1 {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, hdr.Version)
	}
	return hdr, nil
}
