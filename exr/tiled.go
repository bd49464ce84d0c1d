package exr

import (
	"errors"
	"io"
	"math"

	"github.com/exrforge/openexr/half"
)

// Tiled reader/writer errors.
var (
	ErrNotTiled        = errors.New("exr: header has no tile description")
	ErrLevelOutOfRange = errors.New("exr: resolution level out of range")
)

// TiledWriter writes tile chunks to a single-part tiled EXR stream, at
// whatever resolution levels the header's tile description describes.
type TiledWriter struct {
	w      *Writer
	header *Header
	fb     *FrameBuffer
}

// NewTiledWriter begins a new tiled EXR stream. h must carry a tile
// description.
func NewTiledWriter(ws io.WriteSeeker, h *Header) (*TiledWriter, error) {
	if !h.IsTiled() {
		return nil, ErrNotTiled
	}
	if !h.Has(AttrNameType) {
		h.Set(&Attribute{Name: AttrNameType, Type: AttrTypeString, Value: PartTypeTiled})
	}
	w, err := NewMultiPartWriter(ws, []*Header{h})
	if err != nil {
		return nil, err
	}
	return &TiledWriter{w: w, header: h}, nil
}

// Header returns the header this writer was created with.
func (tw *TiledWriter) Header() *Header { return tw.header }

// LevelMode returns the header's resolution level mode.
func (tw *TiledWriter) LevelMode() LevelMode {
	return tw.header.TileDescription().Mode
}

// NumLevels returns the number of resolution levels. For ripmapped
// images this equals NumXLevels, which only agrees with NumYLevels when
// the image is square; callers mipping over a ripmap should index by
// NumXLevels/NumYLevels instead.
func (tw *TiledWriter) NumLevels() int { return tw.header.NumXLevels() }

// NumXLevels returns the number of horizontal resolution levels.
func (tw *TiledWriter) NumXLevels() int { return tw.header.NumXLevels() }

// NumYLevels returns the number of vertical resolution levels.
func (tw *TiledWriter) NumYLevels() int { return tw.header.NumYLevels() }

// LevelWidth returns the pixel width of the given horizontal level.
func (tw *TiledWriter) LevelWidth(level int) int { return tw.header.LevelWidth(level) }

// LevelHeight returns the pixel height of the given vertical level.
func (tw *TiledWriter) LevelHeight(level int) int { return tw.header.LevelHeight(level) }

// NumTilesX returns the number of tile columns at level 0.
func (tw *TiledWriter) NumTilesX() int { return tw.header.NumXTiles(0) }

// NumTilesY returns the number of tile rows at level 0.
func (tw *TiledWriter) NumTilesY() int { return tw.header.NumYTiles(0) }

// NumXTilesAtLevel returns the number of tile columns at the given
// horizontal level.
func (tw *TiledWriter) NumXTilesAtLevel(level int) int { return tw.header.NumXTiles(level) }

// NumYTilesAtLevel returns the number of tile rows at the given
// vertical level.
func (tw *TiledWriter) NumYTilesAtLevel(level int) int { return tw.header.NumYTiles(level) }

// SetFrameBuffer sets the frame buffer tile pixels are read from. The
// frame buffer's slices are addressed in the coordinate system of
// whatever level is currently being written.
func (tw *TiledWriter) SetFrameBuffer(fb *FrameBuffer) { tw.fb = fb }

// WriteTile writes the tile at (tileX, tileY) in level (0, 0).
func (tw *TiledWriter) WriteTile(tileX, tileY int) error {
	return tw.WriteTileLevel(tileX, tileY, 0, 0)
}

// WriteTiles writes every tile in [x1, x2] x [y1, y2], inclusive, in
// level (0, 0).
func (tw *TiledWriter) WriteTiles(x1, y1, x2, y2 int) error {
	return tw.WriteTilesLevel(x1, y1, x2, y2, 0, 0)
}

// WriteTileLevel writes the tile at (tileX, tileY) in resolution level
// (levelX, levelY), reading pixels from the bound frame buffer.
func (tw *TiledWriter) WriteTileLevel(tileX, tileY, levelX, levelY int) error {
	if tw.fb == nil {
		return ErrNoFrameBuffer
	}
	if levelX < 0 || levelX >= tw.NumXLevels() || levelY < 0 || levelY >= tw.NumYLevels() {
		return ErrLevelOutOfRange
	}

	numTilesX := tw.NumXTilesAtLevel(levelX)
	numTilesY := tw.NumYTilesAtLevel(levelY)
	if tileX < 0 || tileX >= numTilesX || tileY < 0 || tileY >= numTilesY {
		return ErrTileOutOfRange
	}

	td := tw.header.TileDescription()
	levelWidth := tw.LevelWidth(levelX)
	levelHeight := tw.LevelHeight(levelY)

	width := int(td.XSize)
	if startX := tileX * width; startX+width > levelWidth {
		width = levelWidth - startX
	}
	height := int(td.YSize)
	if startY := tileY * height; startY+height > levelHeight {
		height = levelHeight - startY
	}

	compressed, err := tw.encodeTileLevel(tileX, tileY, levelX, levelY, width, height)
	if err != nil {
		return err
	}
	return tw.w.WriteTileChunkPart(0, tileX, tileY, levelX, levelY, compressed)
}

// WriteTilesLevel writes every tile in [x1, x2] x [y1, y2], inclusive,
// in resolution level (levelX, levelY).
func (tw *TiledWriter) WriteTilesLevel(x1, y1, x2, y2, levelX, levelY int) error {
	if x1 > x2 || y1 > y2 {
		return ErrTileOutOfRange
	}
	for ty := y1; ty <= y2; ty++ {
		for tx := x1; tx <= x2; tx++ {
			if err := tw.WriteTileLevel(tx, ty, levelX, levelY); err != nil {
				return err
			}
		}
	}
	return nil
}

// encodeTile compresses the tile at (tileX, tileY) in level (0, 0),
// given its actual pixel width and height (which may be smaller than
// the header's nominal tile size at the right or bottom edge).
func (tw *TiledWriter) encodeTile(tileX, tileY, width, height int) ([]byte, error) {
	return tw.encodeTileLevel(tileX, tileY, 0, 0, width, height)
}

func (tw *TiledWriter) encodeTileLevel(tileX, tileY, levelX, levelY, width, height int) ([]byte, error) {
	td := tw.header.TileDescription()
	startX := tileX * int(td.XSize)
	startY := tileY * int(td.YSize)

	cl := tw.header.Channels()
	uncompressed := buildTileData(tw.fb, cl, startX, startY, width, height)
	return compressChunkData(uncompressed, width, height, cl, tw.header.Compression())
}

// Close finalizes the stream, patching in the real chunk offset table.
func (tw *TiledWriter) Close() error {
	return tw.w.Close()
}

// TiledReader reads tile chunks from a single part of an EXR file.
type TiledReader struct {
	file   *File
	part   int
	header *Header
	fb     *FrameBuffer
}

// NewTiledReader returns a reader for part 0 of f.
func NewTiledReader(f *File) (*TiledReader, error) {
	return NewTiledReaderPart(f, 0)
}

// NewTiledReaderPart returns a reader for the given part of f.
func NewTiledReaderPart(f *File, part int) (*TiledReader, error) {
	if f == nil {
		return nil, ErrInvalidFile
	}
	h := f.Header(part)
	if h == nil {
		return nil, ErrPartNotFound
	}
	if !h.IsTiled() {
		return nil, ErrNotTiled
	}
	return &TiledReader{file: f, part: part, header: h}, nil
}

// Header returns the part's header.
func (tr *TiledReader) Header() *Header { return tr.header }

// DataWindow returns the part's data window.
func (tr *TiledReader) DataWindow() Box2i { return tr.header.DataWindow() }

// LevelMode returns the header's resolution level mode.
func (tr *TiledReader) LevelMode() LevelMode {
	return tr.header.TileDescription().Mode
}

// NumLevels returns the number of resolution levels, see TiledWriter.NumLevels.
func (tr *TiledReader) NumLevels() int { return tr.header.NumXLevels() }

// NumXLevels returns the number of horizontal resolution levels.
func (tr *TiledReader) NumXLevels() int { return tr.header.NumXLevels() }

// NumYLevels returns the number of vertical resolution levels.
func (tr *TiledReader) NumYLevels() int { return tr.header.NumYLevels() }

// LevelWidth returns the pixel width of the given horizontal level.
func (tr *TiledReader) LevelWidth(level int) int { return tr.header.LevelWidth(level) }

// LevelHeight returns the pixel height of the given vertical level.
func (tr *TiledReader) LevelHeight(level int) int { return tr.header.LevelHeight(level) }

// NumTilesX returns the number of tile columns at level 0.
func (tr *TiledReader) NumTilesX() int { return tr.header.NumXTiles(0) }

// NumTilesY returns the number of tile rows at level 0.
func (tr *TiledReader) NumTilesY() int { return tr.header.NumYTiles(0) }

// NumXTilesAtLevel returns the number of tile columns at the given
// horizontal level.
func (tr *TiledReader) NumXTilesAtLevel(level int) int { return tr.header.NumXTiles(level) }

// NumYTilesAtLevel returns the number of tile rows at the given
// vertical level.
func (tr *TiledReader) NumYTilesAtLevel(level int) int { return tr.header.NumYTiles(level) }

// SetFrameBuffer sets the frame buffer tile pixels are written into.
func (tr *TiledReader) SetFrameBuffer(fb *FrameBuffer) { tr.fb = fb }

// ReadTile reads the tile at (tileX, tileY) in level (0, 0).
func (tr *TiledReader) ReadTile(tileX, tileY int) error {
	return tr.ReadTileLevel(tileX, tileY, 0, 0)
}

// ReadTiles reads every tile in [x1, x2] x [y1, y2], inclusive, in
// level (0, 0).
func (tr *TiledReader) ReadTiles(x1, y1, x2, y2 int) error {
	return tr.ReadTilesLevel(x1, y1, x2, y2, 0, 0)
}

// ReadTileLevel reads the tile at (tileX, tileY) in resolution level
// (levelX, levelY) into the bound frame buffer.
func (tr *TiledReader) ReadTileLevel(tileX, tileY, levelX, levelY int) error {
	if tr.fb == nil {
		return ErrNoFrameBuffer
	}
	if levelX < 0 || levelX >= tr.NumXLevels() || levelY < 0 || levelY >= tr.NumYLevels() {
		return ErrLevelOutOfRange
	}

	numTilesX := tr.NumXTilesAtLevel(levelX)
	numTilesY := tr.NumYTilesAtLevel(levelY)
	if tileX < 0 || tileX >= numTilesX || tileY < 0 || tileY >= numTilesY {
		return ErrTileOutOfRange
	}

	chunkIndex := tileChunkIndex(tr.header, tileX, tileY, levelX, levelY)
	_, _, _, _, compressed, err := tr.file.ReadTileChunkHeader(tr.part, chunkIndex)
	if err != nil {
		return err
	}

	td := tr.header.TileDescription()
	levelWidth := tr.LevelWidth(levelX)
	levelHeight := tr.LevelHeight(levelY)

	width := int(td.XSize)
	startX := tileX * width
	if startX+width > levelWidth {
		width = levelWidth - startX
	}
	height := int(td.YSize)
	startY := tileY * height
	if startY+height > levelHeight {
		height = levelHeight - startY
	}

	cl := tr.header.Channels()
	uncompressed, err := decompressChunkData(compressed, width, height, cl, tr.header.Compression())
	if err != nil {
		return err
	}
	unpackTileData(tr.fb, cl, uncompressed, startX, startY, width, height)
	return nil
}

// ReadTilesLevel reads every tile in [x1, x2] x [y1, y2], inclusive, in
// resolution level (levelX, levelY).
func (tr *TiledReader) ReadTilesLevel(x1, y1, x2, y2, levelX, levelY int) error {
	if x1 > x2 || y1 > y2 {
		return ErrTileOutOfRange
	}

	cols := x2 - x1 + 1
	rows := y2 - y1 + 1
	return ParallelForWithError(cols*rows, func(i int) error {
		tx := x1 + i%cols
		ty := y1 + i/cols
		return tr.ReadTileLevel(tx, ty, levelX, levelY)
	})
}

// unpackTileData scatters decompressed tile bytes into a frame
// buffer's slices, offset to the tile's pixel origin.
func unpackTileData(fb *FrameBuffer, cl *ChannelList, data []byte, startX, startY, width, height int) {
	sortedChannels := cl.SortedByName()

	offset := 0
	for y := 0; y < height; y++ {
		for _, ch := range sortedChannels {
			slice := fb.Get(ch.Name)
			for x := 0; x < width; x++ {
				switch ch.Type {
				case PixelTypeHalf:
					if offset+2 > len(data) {
						return
					}
					bits := uint16(data[offset]) | uint16(data[offset+1])<<8
					if slice != nil {
						slice.SetHalf(startX+x, startY+y, half.FromBits(bits))
					}
					offset += 2
				case PixelTypeFloat:
					if offset+4 > len(data) {
						return
					}
					bits := uint32(data[offset]) | uint32(data[offset+1])<<8 |
						uint32(data[offset+2])<<16 | uint32(data[offset+3])<<24
					if slice != nil {
						slice.SetFloat32(startX+x, startY+y, math.Float32frombits(bits))
					}
					offset += 4
				case PixelTypeUint:
					if offset+4 > len(data) {
						return
					}
					bits := uint32(data[offset]) | uint32(data[offset+1])<<8 |
						uint32(data[offset+2])<<16 | uint32(data[offset+3])<<24
					if slice != nil {
						slice.SetUint32(startX+x, startY+y, bits)
					}
					offset += 4
				}
			}
		}
	}
}
