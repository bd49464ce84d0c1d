package exr

import (
	"errors"
	"io"

	"github.com/exrforge/openexr/exrerr"
	"github.com/exrforge/openexr/internal/xdr"
)

// File-level errors
var (
	ErrInvalidFile        = errors.New("exr: not an OpenEXR file")
	ErrUnsupportedVersion = errors.New("exr: unsupported file version")
	ErrChunkTooLarge      = errors.New("exr: chunk payload exceeds size cap")
)

// MaxChunkPayloadSize caps the declared size of a single chunk payload.
// A chunk header claiming more than this is rejected before the payload
// is allocated, so a corrupt size field can't trigger an unbounded
// allocation. 2 GiB matches the format's own historical ceiling.
var MaxChunkPayloadSize int64 = 1 << 31

// File is a read-only handle on an OpenEXR file: its headers, offset
// tables, and raw (still compressed) chunk data. ScanlineReader,
// TiledReader, and the deep readers build on top of it.
type File struct {
	r      io.ReaderAt
	size   int64
	closer io.Closer

	version VersionFieldInfo
	headers []*Header
	offsets [][]int64
}

// OpenReader parses an EXR file's headers and offset tables from r,
// which must provide random access to size bytes.
func OpenReader(r io.ReaderAt, size int64) (*File, error) {
	if size < 8 {
		return nil, exrerr.Wrap(exrerr.Corrupt, ErrInvalidFile)
	}

	head := make([]byte, size)
	if _, err := r.ReadAt(head, 0); err != nil && err != io.EOF {
		return nil, err
	}

	xr := xdr.NewReader(head)

	magic, err := xr.ReadBytes(4)
	if err != nil {
		return nil, exrerr.Wrap(exrerr.IO, err)
	}
	for i := range magic {
		if magic[i] != MagicNumber[i] {
			return nil, exrerr.WrapAt(exrerr.Corrupt, 0, ErrInvalidFile)
		}
	}

	rawVersion, err := xr.ReadUint32()
	if err != nil {
		return nil, exrerr.Wrap(exrerr.IO, err)
	}
	info := ParseVersionField(rawVersion)
	if info.Version != 1 && info.Version != 2 {
		return nil, exrerr.WrapAt(exrerr.Unsupported, 4, ErrUnsupportedVersion)
	}

	f := &File{r: r, size: size, version: info}

	if info.MultiPart {
		// Multi-part files store a sequence of headers, each
		// terminated by an empty-name marker, with the whole sequence
		// itself terminated by one extra empty header.
		for {
			h, err := ReadHeader(xr)
			if err != nil {
				return nil, err
			}
			if len(h.Attributes()) == 0 {
				break
			}
			f.headers = append(f.headers, h)
		}
	} else {
		h, err := ReadHeader(xr)
		if err != nil {
			return nil, err
		}
		f.headers = append(f.headers, h)
	}

	f.offsets = make([][]int64, len(f.headers))
	for i, h := range f.headers {
		n := h.ChunksInFile()
		offsets := make([]int64, n)
		for j := 0; j < n; j++ {
			v, err := xr.ReadUint64()
			if err != nil {
				return nil, err
			}
			offsets[j] = int64(v)
		}
		f.offsets[i] = offsets
	}

	return f, nil
}

// NumParts returns the number of parts in the file.
func (f *File) NumParts() int {
	return len(f.headers)
}

// IsMultiPart reports whether the file was written with the multi-part
// version flag set.
func (f *File) IsMultiPart() bool {
	return f.version.MultiPart
}

// IsDeep reports whether any part in the file stores deep data.
func (f *File) IsDeep() bool {
	return f.version.Deep
}

// Header returns the header for the given part, or nil if out of range.
func (f *File) Header(part int) *Header {
	if part < 0 || part >= len(f.headers) {
		return nil
	}
	return f.headers[part]
}

// OffsetsRef returns the chunk offset table for the given part.
func (f *File) OffsetsRef(part int) []int64 {
	if part < 0 || part >= len(f.offsets) {
		return nil
	}
	return f.offsets[part]
}

// Close releases the underlying file handle or memory mapping, if any.
func (f *File) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// readAt reads n bytes starting at offset off.
func (f *File) readAt(off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := f.r.ReadAt(buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadRawChunk reads the raw (scanline or tile) chunk at the given
// offset-table index for a non-deep part. It returns the chunk's
// leading coordinate (scanline y, or the tile's x coordinate; see
// ReadTileChunkHeader for all four tile coordinates) and the
// still-compressed payload.
func (f *File) ReadRawChunk(part, chunkIndex int) (coord int32, payload []byte, err error) {
	offsets := f.OffsetsRef(part)
	if chunkIndex < 0 || chunkIndex >= len(offsets) {
		return 0, nil, ErrTileOutOfRange
	}

	h := f.Header(part)
	pos := offsets[chunkIndex]

	if h.IsTiled() {
		hdr, err := f.readAt(pos, 20)
		if err != nil {
			return 0, nil, err
		}
		hr := xdr.NewReader(hdr)
		tileX, _ := hr.ReadInt32()
		hr.ReadInt32() // tileY
		hr.ReadInt32() // levelX
		hr.ReadInt32() // levelY
		size, _ := hr.ReadInt32()
		if int64(size) < 0 || int64(size) > MaxChunkPayloadSize {
			return 0, nil, exrerr.WrapAt(exrerr.Corrupt, pos, ErrChunkTooLarge)
		}
		data, err := f.readAt(pos+20, int(size))
		if err != nil {
			return 0, nil, err
		}
		return tileX, data, nil
	}

	hdr, err := f.readAt(pos, 8)
	if err != nil {
		return 0, nil, err
	}
	hr := xdr.NewReader(hdr)
	y, _ := hr.ReadInt32()
	size, _ := hr.ReadInt32()
	if int64(size) < 0 || int64(size) > MaxChunkPayloadSize {
		return 0, nil, exrerr.WrapAt(exrerr.Corrupt, pos, ErrChunkTooLarge)
	}
	data, err := f.readAt(pos+8, int(size))
	if err != nil {
		return 0, nil, err
	}
	return y, data, nil
}

// ReadTileChunkHeader reads the full four-coordinate tile header at the
// given offset-table index, for readers that need the level indices.
func (f *File) ReadTileChunkHeader(part, chunkIndex int) (tileX, tileY, levelX, levelY int32, payload []byte, err error) {
	offsets := f.OffsetsRef(part)
	if chunkIndex < 0 || chunkIndex >= len(offsets) {
		return 0, 0, 0, 0, nil, ErrTileOutOfRange
	}
	pos := offsets[chunkIndex]

	hdr, err := f.readAt(pos, 20)
	if err != nil {
		return 0, 0, 0, 0, nil, err
	}
	hr := xdr.NewReader(hdr)
	tileX, _ = hr.ReadInt32()
	tileY, _ = hr.ReadInt32()
	levelX, _ = hr.ReadInt32()
	levelY, _ = hr.ReadInt32()
	size, _ := hr.ReadInt32()
	if int64(size) < 0 || int64(size) > MaxChunkPayloadSize {
		return 0, 0, 0, 0, nil, exrerr.WrapAt(exrerr.Corrupt, pos, ErrChunkTooLarge)
	}

	data, err := f.readAt(pos+20, int(size))
	if err != nil {
		return 0, 0, 0, 0, nil, err
	}
	return tileX, tileY, levelX, levelY, data, nil
}

// ReadDeepChunk reads a single deep-scanline chunk: the scanline y the
// chunk begins at, its still-compressed sample-count table, and its
// still-compressed sample data.
func (f *File) ReadDeepChunk(part, chunkIndex int) (y int, sampleCountData, pixelData []byte, err error) {
	offsets := f.OffsetsRef(part)
	if chunkIndex < 0 || chunkIndex >= len(offsets) {
		return 0, nil, nil, ErrTileOutOfRange
	}
	pos := offsets[chunkIndex]

	hdr, err := f.readAt(pos, 20)
	if err != nil {
		return 0, nil, nil, err
	}
	hr := xdr.NewReader(hdr)
	yy, _ := hr.ReadInt32()
	sampleCountSize, _ := hr.ReadUint64()
	pixelDataSize, _ := hr.ReadUint64()
	if int64(sampleCountSize) > MaxChunkPayloadSize || int64(pixelDataSize) > MaxChunkPayloadSize {
		return 0, nil, nil, exrerr.WrapAt(exrerr.Corrupt, pos, ErrChunkTooLarge)
	}

	offset := pos + 20
	sampleCountData, err = f.readAt(offset, int(sampleCountSize))
	if err != nil {
		return 0, nil, nil, err
	}
	offset += int64(sampleCountSize)
	pixelData, err = f.readAt(offset, int(pixelDataSize))
	if err != nil {
		return 0, nil, nil, err
	}

	return int(yy), sampleCountData, pixelData, nil
}

// ReadDeepTileChunk reads a single deep-tile chunk: the tile's X
// coordinate, its still-compressed sample-count table, and its
// still-compressed sample data.
func (f *File) ReadDeepTileChunk(part, chunkIndex int) (tileX int, sampleCountData, pixelData []byte, err error) {
	offsets := f.OffsetsRef(part)
	if chunkIndex < 0 || chunkIndex >= len(offsets) {
		return 0, nil, nil, ErrTileOutOfRange
	}
	pos := offsets[chunkIndex]

	hdr, err := f.readAt(pos, 32)
	if err != nil {
		return 0, nil, nil, err
	}
	hr := xdr.NewReader(hdr)
	tx, _ := hr.ReadInt32()
	hr.ReadInt32() // tileY
	hr.ReadInt32() // levelX
	hr.ReadInt32() // levelY
	sampleCountSize, _ := hr.ReadUint64()
	pixelDataSize, _ := hr.ReadUint64()
	if int64(sampleCountSize) > MaxChunkPayloadSize || int64(pixelDataSize) > MaxChunkPayloadSize {
		return 0, nil, nil, exrerr.WrapAt(exrerr.Corrupt, pos, ErrChunkTooLarge)
	}

	offset := pos + 32
	sampleCountData, err = f.readAt(offset, int(sampleCountSize))
	if err != nil {
		return 0, nil, nil, err
	}
	offset += int64(sampleCountSize)
	pixelData, err = f.readAt(offset, int(pixelDataSize))
	if err != nil {
		return 0, nil, nil, err
	}

	return int(tx), sampleCountData, pixelData, nil
}
