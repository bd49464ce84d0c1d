package exr

import (
	"io"

	"github.com/exrforge/openexr/internal/xdr"
)

// Writer is the low-level sink every scanline, tiled, and multi-part
// writer builds on: it owns the magic number, version field, header
// sequence, and placeholder offset tables, and patches the real chunk
// offsets back in on Close.
type Writer struct {
	w       io.WriteSeeker
	headers []*Header

	offsetTablePos []int64
	offsets        [][]int64
	initialized    bool
}

// NewMultiPartWriter writes the magic number, version field, and every
// header's attribute sequence, followed by one placeholder offset table
// per header. Single-part files use a one-element headers slice.
func NewMultiPartWriter(w io.WriteSeeker, headers []*Header) (*Writer, error) {
	if len(headers) == 0 {
		return nil, ErrInvalidHeader
	}

	multiPart := len(headers) > 1
	tiled := false
	deep := false
	for _, h := range headers {
		if h.IsTiled() {
			tiled = true
		}
		if h.IsDeep() {
			deep = true
		}
	}

	if _, err := w.Write(MagicNumber); err != nil {
		return nil, err
	}

	versionField := MakeVersionField(2, tiled, false, deep, multiPart)
	vbuf := make([]byte, 4)
	xdr.ByteOrder.PutUint32(vbuf, versionField)
	if _, err := w.Write(vbuf); err != nil {
		return nil, err
	}

	for i, h := range headers {
		if multiPart && !h.Has(AttrNameName) {
			h.Set(&Attribute{Name: AttrNameName, Type: AttrTypeString, Value: partName(i)})
		}
		if multiPart && !h.Has(AttrNameChunkCount) {
			h.Set(&Attribute{Name: AttrNameChunkCount, Type: AttrTypeInt, Value: int32(h.ChunksInFile())})
		}
		hw := xdr.NewBufferWriter(1024)
		if err := WriteHeader(hw, h); err != nil {
			return nil, err
		}
		if _, err := w.Write(hw.Bytes()); err != nil {
			return nil, err
		}
	}

	if multiPart {
		// Extra terminator marking the end of the part list.
		if _, err := w.Write([]byte{0}); err != nil {
			return nil, err
		}
	}

	wr := &Writer{
		w:              w,
		headers:        headers,
		offsetTablePos: make([]int64, len(headers)),
		offsets:        make([][]int64, len(headers)),
	}

	for i, h := range headers {
		pos, err := w.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		wr.offsetTablePos[i] = pos
		n := h.ChunksInFile()
		wr.offsets[i] = make([]int64, n)
		if _, err := w.Write(make([]byte, n*8)); err != nil {
			return nil, err
		}
	}

	wr.initialized = true
	return wr, nil
}

func partName(i int) string {
	const letters = "0123456789"
	if i < 10 {
		return string(letters[i])
	}
	return "part" + string(rune('0'+i))
}

// WriteChunkPart appends a scanline chunk for the given part at scanline
// y, recording its file offset at the chunk index y maps to.
func (w *Writer) WriteChunkPart(part int, y int32, compressed []byte) error {
	h := w.headers[part]
	pos, err := w.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	hdr := make([]byte, 8)
	xdr.ByteOrder.PutUint32(hdr[0:4], uint32(y))
	xdr.ByteOrder.PutUint32(hdr[4:8], uint32(len(compressed)))
	if _, err := w.w.Write(hdr); err != nil {
		return err
	}
	if _, err := w.w.Write(compressed); err != nil {
		return err
	}

	linesPerChunk := h.Compression().ScanlinesPerChunk()
	yMin := int(h.DataWindow().Min.Y)
	chunkIndex := (int(y) - yMin) / linesPerChunk
	if chunkIndex >= 0 && chunkIndex < len(w.offsets[part]) {
		w.offsets[part][chunkIndex] = pos
	}
	return nil
}

// WriteTileChunkPart appends a tile chunk for the given part, recording
// its file offset at the chunk index the tile coordinates map to.
func (w *Writer) WriteTileChunkPart(part, tileX, tileY, levelX, levelY int, compressed []byte) error {
	h := w.headers[part]
	pos, err := w.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	hdr := make([]byte, 20)
	xdr.ByteOrder.PutUint32(hdr[0:4], uint32(tileX))
	xdr.ByteOrder.PutUint32(hdr[4:8], uint32(tileY))
	xdr.ByteOrder.PutUint32(hdr[8:12], uint32(levelX))
	xdr.ByteOrder.PutUint32(hdr[12:16], uint32(levelY))
	xdr.ByteOrder.PutUint32(hdr[16:20], uint32(len(compressed)))
	if _, err := w.w.Write(hdr); err != nil {
		return err
	}
	if _, err := w.w.Write(compressed); err != nil {
		return err
	}

	chunkIndex := tileChunkIndex(h, tileX, tileY, levelX, levelY)
	if chunkIndex >= 0 && chunkIndex < len(w.offsets[part]) {
		w.offsets[part][chunkIndex] = pos
	}
	return nil
}

// tileChunkIndex flattens a tile's (x, y, levelX, levelY) coordinate
// into its position in the part's offset table, matching the ordering
// TiledReader/TiledWriter use to lay out mipmap and ripmap levels.
func tileChunkIndex(h *Header, tileX, tileY, levelX, levelY int) int {
	td := h.TileDescription()
	if td == nil {
		return -1
	}

	offset := 0
	switch td.Mode {
	case LevelModeMipmap:
		for l := 0; l < levelX; l++ {
			offset += h.NumXTiles(l) * h.NumYTiles(l)
		}
		numXAtLevel := h.NumXTiles(levelX)
		offset += tileY*numXAtLevel + tileX
	case LevelModeRipmap:
		xLevels := h.NumXLevels()
		for ly := 0; ly < levelY; ly++ {
			for lx := 0; lx < xLevels; lx++ {
				offset += h.NumXTiles(lx) * h.NumYTiles(ly)
			}
		}
		for lx := 0; lx < levelX; lx++ {
			offset += h.NumXTiles(lx) * h.NumYTiles(levelY)
		}
		numXAtLevel := h.NumXTiles(levelX)
		offset += tileY*numXAtLevel + tileX
	default:
		numXAtLevel := h.NumXTiles(0)
		offset = tileY*numXAtLevel + tileX
	}
	return offset
}

// Close patches every part's real chunk offsets into its placeholder
// offset table.
func (w *Writer) Close() error {
	endPos, err := w.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	for i, offsets := range w.offsets {
		buf := make([]byte, len(offsets)*8)
		for j, off := range offsets {
			xdr.ByteOrder.PutUint64(buf[j*8:], uint64(off))
		}
		if _, err := w.w.Seek(w.offsetTablePos[i], io.SeekStart); err != nil {
			return err
		}
		if _, err := w.w.Write(buf); err != nil {
			return err
		}
	}

	_, err = w.w.Seek(endPos, io.SeekStart)
	return err
}
