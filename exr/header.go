package exr

import (
	"errors"
	"sort"

	"github.com/exrforge/openexr/internal/xdr"
)

// Header errors
var (
	ErrInvalidHeader = errors.New("exr: invalid header")
)

// Standard attribute names, as they appear on the wire.
const (
	AttrNameChannels           = "channels"
	AttrNameCompression        = "compression"
	AttrNameDataWindow         = "dataWindow"
	AttrNameDisplayWindow      = "displayWindow"
	AttrNameLineOrder          = "lineOrder"
	AttrNamePixelAspectRatio   = "pixelAspectRatio"
	AttrNameScreenWindowCenter = "screenWindowCenter"
	AttrNameScreenWindowWidth  = "screenWindowWidth"
	AttrNameTiles              = "tiles"
	AttrNameName               = "name"
	AttrNameType               = "type"
	AttrNameVersion            = "version"
	AttrNameChunkCount         = "chunkCount"
	AttrNameView               = "view"
	AttrNameMultiView          = "multiView"
	AttrNameEnvmap             = "envmap"
	AttrNameAdoptedNeutral     = "adoptedNeutral"
	AttrNameDwaCompressionLevel = "dwaCompressionLevel"
	AttrNameZipLevel           = "zipLevel" // non-standard, used for round-trip fidelity
)

// Standard part "type" attribute values.
const (
	PartTypeScanline     = "scanlineimage"
	PartTypeTiled        = "tiledimage"
	PartTypeDeepScanline = "deepscanline"
	PartTypeDeepTiled    = "deeptile"
)

// DefaultDWACompressionLevel is the DWA quantization level used when a
// header doesn't explicitly set one.
const DefaultDWACompressionLevel = 45.0

// MagicNumber is the four bytes every OpenEXR file begins with,
// little-endian encoding of 0x01312F76.
var MagicNumber = []byte{0x76, 0x2f, 0x31, 0x01}

// MakeVersionField packs the format version and feature flags into the
// 4-byte version field that follows the magic number.
func MakeVersionField(version int, tiled, longNames, deep, multipart bool) uint32 {
	v := uint32(version) & 0xff
	if tiled {
		v |= 1 << 9
	}
	if longNames {
		v |= 1 << 10
	}
	if deep {
		v |= 1 << 11
	}
	if multipart {
		v |= 1 << 12
	}
	return v
}

// VersionFieldInfo decodes the feature flags packed by MakeVersionField.
type VersionFieldInfo struct {
	Version   int
	Tiled     bool
	LongNames bool
	Deep      bool
	MultiPart bool
}

// ParseVersionField unpacks a version field read from a file.
func ParseVersionField(v uint32) VersionFieldInfo {
	return VersionFieldInfo{
		Version:   int(v & 0xff),
		Tiled:     v&(1<<9) != 0,
		LongNames: v&(1<<10) != 0,
		Deep:      v&(1<<11) != 0,
		MultiPart: v&(1<<12) != 0,
	}
}

// CompressionOptions carries tunable, non-standard compression parameters
// that aren't part of the canonical attribute set but affect how a
// header's chunks are produced.
type CompressionOptions struct {
	// ZIPLevel is the zlib compression level the deep scanline and deep
	// tiled writers use for ZIP/ZIPS chunks. -1 selects the zlib default.
	// The scanline, tiled and multi-part writers do not read it; they
	// compress at the zlib default level.
	ZIPLevel int
}

// Header holds an ordered set of attributes describing one part of an
// EXR file: its channels, windows, compression, and any custom metadata.
type Header struct {
	attrs   []*Attribute
	index   map[string]int
	flevel  int
	fdetect bool
}

// NewHeader returns an empty header with no attributes set.
func NewHeader() *Header {
	return &Header{index: make(map[string]int)}
}

// NewScanlineHeader returns a header preconfigured for a width x height
// RGB scanline image compressed with ZIP.
func NewScanlineHeader(width, height int) *Header {
	h := NewHeader()
	dw := Box2i{Min: V2i{0, 0}, Max: V2i{int32(width - 1), int32(height - 1)}}
	h.SetDataWindow(dw)
	h.SetDisplayWindow(dw)
	h.SetCompression(CompressionZIP)
	h.SetLineOrder(LineOrderIncreasing)
	h.SetPixelAspectRatio(1.0)
	h.SetScreenWindowCenter(V2f{0, 0})
	h.SetScreenWindowWidth(1.0)

	cl := NewChannelList()
	cl.Add(NewChannel("R", PixelTypeHalf))
	cl.Add(NewChannel("G", PixelTypeHalf))
	cl.Add(NewChannel("B", PixelTypeHalf))
	h.SetChannels(cl)

	return h
}

// NewTiledHeader returns a header preconfigured for a width x height
// image tiled into tileW x tileH, single-resolution tiles.
func NewTiledHeader(width, height, tileW, tileH int) *Header {
	h := NewScanlineHeader(width, height)
	h.SetTileDescription(TileDescription{
		XSize: uint32(tileW),
		YSize: uint32(tileH),
		Mode:  LevelModeOne,
	})
	return h
}

// NewMipmapTiledHeader returns a header preconfigured for a mipmapped,
// tiled width x height image with tileW x tileH tiles.
func NewMipmapTiledHeader(width, height, tileW, tileH int) *Header {
	h := NewScanlineHeader(width, height)
	h.SetTileDescription(TileDescription{
		XSize:        uint32(tileW),
		YSize:        uint32(tileH),
		Mode:         LevelModeMipmap,
		RoundingMode: LevelRoundDown,
	})
	return h
}

// Set inserts or replaces an attribute by name.
func (h *Header) Set(attr *Attribute) {
	if i, ok := h.index[attr.Name]; ok {
		h.attrs[i] = attr
		return
	}
	h.index[attr.Name] = len(h.attrs)
	h.attrs = append(h.attrs, attr)
}

// Get returns the attribute with the given name, or nil.
func (h *Header) Get(name string) *Attribute {
	if i, ok := h.index[name]; ok {
		return h.attrs[i]
	}
	return nil
}

// Has reports whether an attribute with the given name exists.
func (h *Header) Has(name string) bool {
	_, ok := h.index[name]
	return ok
}

// Remove deletes the attribute with the given name, if present.
func (h *Header) Remove(name string) {
	i, ok := h.index[name]
	if !ok {
		return
	}
	h.attrs = append(h.attrs[:i], h.attrs[i+1:]...)
	delete(h.index, name)
	for n, idx := range h.index {
		if idx > i {
			h.index[n] = idx - 1
		}
	}
}

// Attributes returns every attribute in the header, in insertion order.
func (h *Header) Attributes() []*Attribute {
	return h.attrs
}

// Channels returns the header's channel list, or nil if unset.
func (h *Header) Channels() *ChannelList {
	if a := h.Get(AttrNameChannels); a != nil {
		if cl, ok := a.Value.(*ChannelList); ok {
			return cl
		}
	}
	return nil
}

// SetChannels sets the header's channel list.
func (h *Header) SetChannels(cl *ChannelList) {
	h.Set(&Attribute{Name: AttrNameChannels, Type: AttrTypeChlist, Value: cl})
}

// Compression returns the header's compression method, defaulting to
// CompressionNone when unset.
func (h *Header) Compression() Compression {
	if a := h.Get(AttrNameCompression); a != nil {
		if c, ok := a.Value.(Compression); ok {
			return c
		}
	}
	return CompressionNone
}

// SetCompression sets the header's compression method.
func (h *Header) SetCompression(c Compression) {
	h.Set(&Attribute{Name: AttrNameCompression, Type: AttrTypeCompression, Value: c})
}

// DataWindow returns the header's data window.
func (h *Header) DataWindow() Box2i {
	if a := h.Get(AttrNameDataWindow); a != nil {
		if b, ok := a.Value.(Box2i); ok {
			return b
		}
	}
	return Box2i{}
}

// SetDataWindow sets the header's data window.
func (h *Header) SetDataWindow(b Box2i) {
	h.Set(&Attribute{Name: AttrNameDataWindow, Type: AttrTypeBox2i, Value: b})
}

// DisplayWindow returns the header's display window.
func (h *Header) DisplayWindow() Box2i {
	if a := h.Get(AttrNameDisplayWindow); a != nil {
		if b, ok := a.Value.(Box2i); ok {
			return b
		}
	}
	return Box2i{}
}

// SetDisplayWindow sets the header's display window.
func (h *Header) SetDisplayWindow(b Box2i) {
	h.Set(&Attribute{Name: AttrNameDisplayWindow, Type: AttrTypeBox2i, Value: b})
}

// LineOrder returns the header's scanline order, defaulting to
// LineOrderIncreasing when unset.
func (h *Header) LineOrder() LineOrder {
	if a := h.Get(AttrNameLineOrder); a != nil {
		if lo, ok := a.Value.(LineOrder); ok {
			return lo
		}
	}
	return LineOrderIncreasing
}

// SetLineOrder sets the header's scanline order.
func (h *Header) SetLineOrder(lo LineOrder) {
	h.Set(&Attribute{Name: AttrNameLineOrder, Type: AttrTypeLineOrder, Value: lo})
}

// PixelAspectRatio returns the header's pixel aspect ratio, defaulting
// to 1.0 when unset.
func (h *Header) PixelAspectRatio() float32 {
	if a := h.Get(AttrNamePixelAspectRatio); a != nil {
		if f, ok := a.Value.(float32); ok {
			return f
		}
	}
	return 1.0
}

// SetPixelAspectRatio sets the header's pixel aspect ratio.
func (h *Header) SetPixelAspectRatio(f float32) {
	h.Set(&Attribute{Name: AttrNamePixelAspectRatio, Type: AttrTypeFloat, Value: f})
}

// ScreenWindowCenter returns the header's screen window center,
// defaulting to the origin when unset.
func (h *Header) ScreenWindowCenter() V2f {
	if a := h.Get(AttrNameScreenWindowCenter); a != nil {
		if v, ok := a.Value.(V2f); ok {
			return v
		}
	}
	return V2f{}
}

// SetScreenWindowCenter sets the header's screen window center.
func (h *Header) SetScreenWindowCenter(v V2f) {
	h.Set(&Attribute{Name: AttrNameScreenWindowCenter, Type: AttrTypeV2f, Value: v})
}

// ScreenWindowWidth returns the header's screen window width, defaulting
// to 1.0 when unset.
func (h *Header) ScreenWindowWidth() float32 {
	if a := h.Get(AttrNameScreenWindowWidth); a != nil {
		if f, ok := a.Value.(float32); ok {
			return f
		}
	}
	return 1.0
}

// SetScreenWindowWidth sets the header's screen window width.
func (h *Header) SetScreenWindowWidth(f float32) {
	h.Set(&Attribute{Name: AttrNameScreenWindowWidth, Type: AttrTypeFloat, Value: f})
}

// IsTiled reports whether the header has a tile description.
func (h *Header) IsTiled() bool {
	return h.Has(AttrNameTiles)
}

// TileDescription returns the header's tile description, or nil if the
// part is not tiled.
func (h *Header) TileDescription() *TileDescription {
	if a := h.Get(AttrNameTiles); a != nil {
		if td, ok := a.Value.(TileDescription); ok {
			return &td
		}
	}
	return nil
}

// SetTileDescription marks the header as tiled with the given layout.
func (h *Header) SetTileDescription(td TileDescription) {
	h.Set(&Attribute{Name: AttrNameTiles, Type: AttrTypeTileDesc, Value: td})
}

// IsDeep reports whether the header's "type" attribute names a deep
// storage class.
func (h *Header) IsDeep() bool {
	if a := h.Get(AttrNameType); a != nil {
		if t, ok := a.Value.(string); ok {
			return t == PartTypeDeepScanline || t == PartTypeDeepTiled
		}
	}
	return false
}

// Width returns the width of the data window in pixels.
func (h *Header) Width() int {
	return int(h.DataWindow().Width())
}

// Height returns the height of the data window in pixels.
func (h *Header) Height() int {
	return int(h.DataWindow().Height())
}

// DWACompressionLevel returns the DWA quantization level stored in the
// header, defaulting to DefaultDWACompressionLevel when unset. The
// writers do not read it: they compress DWAA and DWAB chunks at level 45
// whatever this attribute holds.
func (h *Header) DWACompressionLevel() float32 {
	if a := h.Get(AttrNameDwaCompressionLevel); a != nil {
		if f, ok := a.Value.(float32); ok {
			return f
		}
	}
	return DefaultDWACompressionLevel
}

// SetDWACompressionLevel sets the DWA quantization level.
func (h *Header) SetDWACompressionLevel(f float32) {
	h.Set(&Attribute{Name: AttrNameDwaCompressionLevel, Type: AttrTypeFloat, Value: f})
}

// ZIPLevel returns the zlib compression level the deep scanline and deep
// tiled writers use for ZIP/ZIPS chunks. Returns -1 (the zlib default)
// when unset. The scanline, tiled and multi-part writers do not read it.
func (h *Header) ZIPLevel() int {
	if a := h.Get(AttrNameZipLevel); a != nil {
		if i, ok := a.Value.(int32); ok {
			return int(i)
		}
	}
	return -1
}

// SetZIPLevel sets the zlib compression level returned by ZIPLevel.
func (h *Header) SetZIPLevel(level int) {
	h.Set(&Attribute{Name: AttrNameZipLevel, Type: AttrTypeInt, Value: int32(level)})
}

// DetectedFLevel returns the zlib compression level a reader inferred
// from an opened file's compressed chunk sizes, if detection ran.
func (h *Header) DetectedFLevel() (int, bool) {
	return h.flevel, h.fdetect
}

// setDetectedFLevel records a reader's inferred zlib level.
func (h *Header) setDetectedFLevel(level int) {
	h.flevel = level
	h.fdetect = true
}

// CompressionOptions returns the header's tunable compression
// parameters.
func (h *Header) CompressionOptions() CompressionOptions {
	return CompressionOptions{ZIPLevel: h.ZIPLevel()}
}

// SetCompressionOptions sets the header's tunable compression
// parameters.
func (h *Header) SetCompressionOptions(opts CompressionOptions) {
	h.SetZIPLevel(opts.ZIPLevel)
}

// numLevels computes how many mipmap levels a dimension of the given
// size produces, per the EXR level-rounding rules.
func numLevels(size int, rounding LevelRoundingMode) int {
	if size <= 0 {
		return 0
	}
	n := 1
	s := size
	for s > 1 {
		if rounding == LevelRoundDown {
			s = s / 2
		} else {
			s = (s + 1) / 2
		}
		n++
	}
	return n
}

// levelSize computes the size of a single dimension at the given level.
func levelSize(fullSize, level int, rounding LevelRoundingMode) int {
	if level <= 0 {
		return fullSize
	}
	s := fullSize
	for i := 0; i < level; i++ {
		if rounding == LevelRoundDown {
			s = s / 2
		} else {
			s = (s + 1) / 2
		}
		if s < 1 {
			s = 1
		}
	}
	if s < 1 {
		s = 1
	}
	return s
}

// NumXLevels returns the number of horizontal resolution levels.
// Returns 1 for untiled headers or LevelModeOne.
func (h *Header) NumXLevels() int {
	td := h.TileDescription()
	if td == nil {
		return 1
	}
	switch td.Mode {
	case LevelModeOne:
		return 1
	case LevelModeMipmap:
		w, ht := h.Width(), h.Height()
		size := w
		if ht > size {
			size = ht
		}
		return numLevels(size, td.RoundingMode)
	case LevelModeRipmap:
		return numLevels(h.Width(), td.RoundingMode)
	default:
		return 1
	}
}

// NumYLevels returns the number of vertical resolution levels.
// Returns 1 for untiled headers or LevelModeOne.
func (h *Header) NumYLevels() int {
	td := h.TileDescription()
	if td == nil {
		return 1
	}
	switch td.Mode {
	case LevelModeOne:
		return 1
	case LevelModeMipmap:
		w, ht := h.Width(), h.Height()
		size := w
		if ht > size {
			size = ht
		}
		return numLevels(size, td.RoundingMode)
	case LevelModeRipmap:
		return numLevels(h.Height(), td.RoundingMode)
	default:
		return 1
	}
}

// LevelWidth returns the pixel width of the given horizontal level.
// Negative levels return the full width; levels beyond the last
// available level clamp to 1.
func (h *Header) LevelWidth(level int) int {
	if level < 0 {
		return h.Width()
	}
	td := h.TileDescription()
	if td == nil {
		return h.Width()
	}
	return levelSize(h.Width(), level, td.RoundingMode)
}

// LevelHeight returns the pixel height of the given vertical level.
// Negative levels return the full height; levels beyond the last
// available level clamp to 1.
func (h *Header) LevelHeight(level int) int {
	if level < 0 {
		return h.Height()
	}
	td := h.TileDescription()
	if td == nil {
		return h.Height()
	}
	return levelSize(h.Height(), level, td.RoundingMode)
}

// NumXTiles returns the number of tile columns at the given level.
// Returns 0 when the header has no tile description.
func (h *Header) NumXTiles(level int) int {
	td := h.TileDescription()
	if td == nil {
		return 0
	}
	w := h.LevelWidth(level)
	return (w + int(td.XSize) - 1) / int(td.XSize)
}

// NumYTiles returns the number of tile rows at the given level.
// Returns 0 when the header has no tile description.
func (h *Header) NumYTiles(level int) int {
	td := h.TileDescription()
	if td == nil {
		return 0
	}
	ht := h.LevelHeight(level)
	return (ht + int(td.YSize) - 1) / int(td.YSize)
}

// ChunksInFile returns the total number of chunks (scanline blocks or
// tiles, across every resolution level) the header describes.
func (h *Header) ChunksInFile() int {
	td := h.TileDescription()
	if td == nil {
		height := h.Height()
		lines := h.Compression().ScanlinesPerChunk()
		return (height + lines - 1) / lines
	}

	switch td.Mode {
	case LevelModeMipmap:
		total := 0
		levels := h.NumXLevels()
		for l := 0; l < levels; l++ {
			total += h.NumXTiles(l) * h.NumYTiles(l)
		}
		return total
	case LevelModeRipmap:
		total := 0
		xLevels := h.NumXLevels()
		yLevels := h.NumYLevels()
		xTilesSum := 0
		for lx := 0; lx < xLevels; lx++ {
			xTilesSum += h.NumXTiles(lx)
		}
		for ly := 0; ly < yLevels; ly++ {
			total += xTilesSum * h.NumYTiles(ly)
		}
		return total
	default:
		return h.NumXTiles(0) * h.NumYTiles(0)
	}
}

// Validate checks that the header carries every attribute required for
// its storage class and that its windows are well-formed.
func (h *Header) Validate() error {
	if !h.Has(AttrNameChannels) {
		return ErrInvalidHeader
	}
	cl := h.Channels()
	if cl == nil || cl.Len() == 0 {
		return ErrInvalidHeader
	}
	if !h.Has(AttrNameCompression) {
		return ErrInvalidHeader
	}
	if !h.Has(AttrNameDataWindow) || !h.Has(AttrNameDisplayWindow) {
		return ErrInvalidHeader
	}
	dw := h.DataWindow()
	if dw.IsEmpty() {
		return ErrInvalidHeader
	}
	if !h.Has(AttrNameLineOrder) {
		return ErrInvalidHeader
	}
	if !h.Has(AttrNamePixelAspectRatio) {
		return ErrInvalidHeader
	}
	if !h.Has(AttrNameScreenWindowCenter) || !h.Has(AttrNameScreenWindowWidth) {
		return ErrInvalidHeader
	}
	if h.IsTiled() {
		td := h.TileDescription()
		if td.XSize == 0 || td.YSize == 0 {
			return ErrInvalidHeader
		}
	}
	return nil
}

// ReadHeader reads a sequence of attributes terminated by an empty-name
// marker.
func ReadHeader(r *xdr.Reader) (*Header, error) {
	h := NewHeader()
	for {
		attr, err := ReadAttribute(r)
		if err != nil {
			return nil, err
		}
		if attr == nil {
			return h, nil
		}
		h.Set(attr)
	}
}

// WriteHeader writes every attribute in the header, in alphabetical
// order by name, followed by the terminating empty-name marker.
func WriteHeader(w *xdr.BufferWriter, h *Header) error {
	for _, name := range h.sortedAttributeNames() {
		if err := WriteAttribute(w, h.attrs[h.index[name]]); err != nil {
			return err
		}
	}
	w.WriteByte(0)
	return nil
}

// sortedAttributeNames returns every attribute name in the header,
// alphabetically sorted. Writing attributes in a fixed order keeps
// header serialization deterministic regardless of Set order.
func (h *Header) sortedAttributeNames() []string {
	names := make([]string, len(h.attrs))
	for i, attr := range h.attrs {
		names[i] = attr.Name
	}
	sort.Strings(names)
	return names
}

// SerializeForTest writes the header's attribute sequence (without a
// surrounding file envelope) to a fresh buffer, for exercising
// serialization determinism.
func (h *Header) SerializeForTest() []byte {
	w := xdr.NewBufferWriter(1024)
	WriteHeader(w, h)
	return w.Bytes()
}

// ReadHeaderFromBytes parses a header's attribute sequence (without a
// surrounding file envelope) from data, the inverse of SerializeForTest.
func ReadHeaderFromBytes(data []byte) (*Header, error) {
	return ReadHeader(xdr.NewReader(data))
}
