package exr

import (
	"errors"
	"fmt"

	"github.com/exrforge/openexr/internal/xdr"
)

// Compression defines the compression method for pixel data.
type Compression uint8

const (
	// CompressionNone stores uncompressed data.
	CompressionNone Compression = 0
	// CompressionRLE uses run-length encoding.
	CompressionRLE Compression = 1
	// CompressionZIPS uses zlib compression on single scanlines.
	CompressionZIPS Compression = 2
	// CompressionZIP uses zlib compression on 16 scanlines.
	CompressionZIP Compression = 3
	// CompressionPIZ uses wavelet compression.
	CompressionPIZ Compression = 4
	// CompressionPXR24 uses 24-bit float conversion with zlib.
	CompressionPXR24 Compression = 5
	// CompressionB44 uses 4x4 block lossy compression.
	CompressionB44 Compression = 6
	// CompressionB44A uses B44 with flat area detection.
	CompressionB44A Compression = 7
	// CompressionDWAA uses DCT-based lossy compression (32 scanlines).
	CompressionDWAA Compression = 8
	// CompressionDWAB uses DCT-based lossy compression (256 scanlines).
	CompressionDWAB Compression = 9
	// CompressionHTJ2K256 uses High-Throughput JPEG 2000 with 128x128 code blocks.
	CompressionHTJ2K256 Compression = 10
	// CompressionHTJ2K32 uses High-Throughput JPEG 2000 with 32x32 code blocks.
	CompressionHTJ2K32 Compression = 11
)

var compressionNames = map[Compression]string{
	CompressionNone:     "none",
	CompressionRLE:      "rle",
	CompressionZIPS:     "zips",
	CompressionZIP:      "zip",
	CompressionPIZ:      "piz",
	CompressionPXR24:    "pxr24",
	CompressionB44:      "b44",
	CompressionB44A:     "b44a",
	CompressionDWAA:     "dwaa",
	CompressionDWAB:     "dwab",
	CompressionHTJ2K256: "htj2k256",
	CompressionHTJ2K32:  "htj2k32",
}

// String returns a string representation of the compression type.
func (c Compression) String() string {
	if s, ok := compressionNames[c]; ok {
		return s
	}
	return "unknown"
}

// ScanlinesPerChunk returns the number of scanlines grouped together
// for this compression type.
func (c Compression) ScanlinesPerChunk() int {
	switch c {
	case CompressionNone, CompressionRLE, CompressionZIPS:
		return 1
	case CompressionZIP, CompressionPXR24:
		return 16
	case CompressionPIZ, CompressionB44, CompressionB44A, CompressionDWAA:
		return 32
	case CompressionDWAB, CompressionHTJ2K256, CompressionHTJ2K32:
		return 256
	default:
		return 1
	}
}

// IsLossy returns true if the compression is lossy.
func (c Compression) IsLossy() bool {
	switch c {
	case CompressionPXR24, CompressionB44, CompressionB44A, CompressionDWAA, CompressionDWAB:
		return true
	default:
		return false
	}
}

// LineOrder defines the order of scanlines in the file.
type LineOrder uint8

const (
	// LineOrderIncreasing stores scanlines from top to bottom (y=0 first).
	LineOrderIncreasing LineOrder = 0
	// LineOrderDecreasing stores scanlines from bottom to top (y=max first).
	LineOrderDecreasing LineOrder = 1
	// LineOrderRandom allows scanlines in any order (for tiled images).
	LineOrderRandom LineOrder = 2
)

var lineOrderNames = map[LineOrder]string{
	LineOrderIncreasing: "increasing_y",
	LineOrderDecreasing: "decreasing_y",
	LineOrderRandom:     "random_y",
}

// String returns a string representation of the line order.
func (lo LineOrder) String() string {
	if s, ok := lineOrderNames[lo]; ok {
		return s
	}
	return "unknown"
}

// EnvMap defines environment map types.
type EnvMap uint8

const (
	// EnvMapLatLong is a latitude-longitude environment map.
	EnvMapLatLong EnvMap = 0
	// EnvMapCube is a cube map.
	EnvMapCube EnvMap = 1
)

// TileDescription describes tile dimensions and level modes.
type TileDescription struct {
	XSize        uint32
	YSize        uint32
	Mode         LevelMode
	RoundingMode LevelRoundingMode
}

// LevelMode defines how multi-resolution levels are stored.
type LevelMode uint8

const (
	// LevelModeOne stores a single resolution level.
	LevelModeOne LevelMode = 0
	// LevelModeMipmap stores power-of-2 mipmap levels.
	LevelModeMipmap LevelMode = 1
	// LevelModeRipmap stores independent X and Y resolution levels.
	LevelModeRipmap LevelMode = 2
)

// LevelRoundingMode defines how level sizes are rounded.
type LevelRoundingMode uint8

const (
	// LevelRoundDown rounds level sizes down.
	LevelRoundDown LevelRoundingMode = 0
	// LevelRoundUp rounds level sizes up.
	LevelRoundUp LevelRoundingMode = 1
)

// Attribute errors
var (
	ErrUnknownAttributeType = errors.New("exr: unknown attribute type")
	ErrAttributeNotFound    = errors.New("exr: attribute not found")
	ErrInvalidAttribute     = errors.New("exr: invalid attribute value")
)

// AttributeType identifies the type of an attribute.
type AttributeType string

// Standard attribute types
const (
	AttrTypeBox2i          AttributeType = "box2i"
	AttrTypeBox2f          AttributeType = "box2f"
	AttrTypeChlist         AttributeType = "chlist"
	AttrTypeChromaticities AttributeType = "chromaticities"
	AttrTypeCompression    AttributeType = "compression"
	AttrTypeDouble         AttributeType = "double"
	AttrTypeEnvmap         AttributeType = "envmap"
	AttrTypeFloat          AttributeType = "float"
	AttrTypeFloatVector    AttributeType = "floatvector"
	AttrTypeInt            AttributeType = "int"
	AttrTypeKeycode        AttributeType = "keycode"
	AttrTypeLineOrder      AttributeType = "lineOrder"
	AttrTypeM33d           AttributeType = "m33d"
	AttrTypeM33f           AttributeType = "m33f"
	AttrTypeM44d           AttributeType = "m44d"
	AttrTypeM44f           AttributeType = "m44f"
	AttrTypePreview        AttributeType = "preview"
	AttrTypeRational       AttributeType = "rational"
	AttrTypeString         AttributeType = "string"
	AttrTypeStringVector   AttributeType = "stringvector"
	AttrTypeTileDesc       AttributeType = "tiledesc"
	AttrTypeTimecode       AttributeType = "timecode"
	AttrTypeV2d            AttributeType = "v2d"
	AttrTypeV2f            AttributeType = "v2f"
	AttrTypeV2i            AttributeType = "v2i"
	AttrTypeV3d            AttributeType = "v3d"
	AttrTypeV3f            AttributeType = "v3f"
	AttrTypeV3i            AttributeType = "v3i"
)

// Attribute represents a single header attribute.
type Attribute struct {
	Name  string
	Type  AttributeType
	Value interface{}
}

// attrCodec pairs the size-aware decoder and encoder for one attribute
// type. size is only meaningful to codecs whose wire length isn't
// implied by the Go type alone (strings, vectors) — fixed-size codecs
// ignore it.
type attrCodec struct {
	read  func(r *xdr.Reader, size int) (interface{}, error)
	write func(w *xdr.BufferWriter, v interface{}) error
}

func fixedCodec(
	read func(r *xdr.Reader) (interface{}, error),
	write func(w *xdr.BufferWriter, v interface{}),
) attrCodec {
	return attrCodec{
		read:  func(r *xdr.Reader, _ int) (interface{}, error) { return read(r) },
		write: func(w *xdr.BufferWriter, v interface{}) error { write(w, v); return nil },
	}
}

var attrCodecs = map[AttributeType]attrCodec{
	AttrTypeBox2i:  fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadBox2i(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteBox2i(w, v.(Box2i)) }),
	AttrTypeBox2f:  fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadBox2f(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteBox2f(w, v.(Box2f)) }),
	AttrTypeChlist: fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadChannelList(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteChannelList(w, v.(*ChannelList)) }),
	AttrTypeChromaticities: fixedCodec(
		func(r *xdr.Reader) (interface{}, error) { return ReadChromaticities(r) },
		func(w *xdr.BufferWriter, v interface{}) { WriteChromaticities(w, v.(Chromaticities)) },
	),
	AttrTypeCompression: fixedCodec(
		func(r *xdr.Reader) (interface{}, error) { b, e := r.ReadByte(); return Compression(b), e },
		func(w *xdr.BufferWriter, v interface{}) { w.WriteByte(byte(v.(Compression))) },
	),
	AttrTypeDouble: fixedCodec(
		func(r *xdr.Reader) (interface{}, error) { return r.ReadFloat64() },
		func(w *xdr.BufferWriter, v interface{}) { w.WriteFloat64(v.(float64)) },
	),
	AttrTypeEnvmap: fixedCodec(
		func(r *xdr.Reader) (interface{}, error) { b, e := r.ReadByte(); return EnvMap(b), e },
		func(w *xdr.BufferWriter, v interface{}) { w.WriteByte(byte(v.(EnvMap))) },
	),
	AttrTypeFloat: fixedCodec(
		func(r *xdr.Reader) (interface{}, error) { return r.ReadFloat32() },
		func(w *xdr.BufferWriter, v interface{}) { w.WriteFloat32(v.(float32)) },
	),
	AttrTypeInt: fixedCodec(
		func(r *xdr.Reader) (interface{}, error) { return r.ReadInt32() },
		func(w *xdr.BufferWriter, v interface{}) { w.WriteInt32(v.(int32)) },
	),
	AttrTypeKeycode: fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadKeyCode(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteKeyCode(w, v.(KeyCode)) }),
	AttrTypeLineOrder: fixedCodec(
		func(r *xdr.Reader) (interface{}, error) { b, e := r.ReadByte(); return LineOrder(b), e },
		func(w *xdr.BufferWriter, v interface{}) { w.WriteByte(byte(v.(LineOrder))) },
	),
	AttrTypeM33f:     fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadM33f(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteM33f(w, v.(M33f)) }),
	AttrTypeM44f:     fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadM44f(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteM44f(w, v.(M44f)) }),
	AttrTypePreview:  fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadPreview(r) }, func(w *xdr.BufferWriter, v interface{}) { WritePreview(w, v.(Preview)) }),
	AttrTypeRational: fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadRational(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteRational(w, v.(Rational)) }),
	AttrTypeString: {
		read: func(r *xdr.Reader, size int) (interface{}, error) {
			b, err := r.ReadBytes(size)
			if err != nil {
				return nil, err
			}
			return string(b), nil
		},
		write: func(w *xdr.BufferWriter, v interface{}) error { w.WriteBytes([]byte(v.(string))); return nil },
	},
	AttrTypeStringVector: {
		read: func(r *xdr.Reader, size int) (interface{}, error) { return readStringVector(r, size) },
		write: func(w *xdr.BufferWriter, v interface{}) error {
			writeStringVector(w, v.([]string))
			return nil
		},
	},
	AttrTypeTileDesc: fixedCodec(
		func(r *xdr.Reader) (interface{}, error) { return readTileDescription(r) },
		func(w *xdr.BufferWriter, v interface{}) { writeTileDescription(w, v.(TileDescription)) },
	),
	AttrTypeTimecode: fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadTimeCode(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteTimeCode(w, v.(TimeCode)) }),
	AttrTypeV2i:      fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadV2i(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteV2i(w, v.(V2i)) }),
	AttrTypeV2f:      fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadV2f(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteV2f(w, v.(V2f)) }),
	AttrTypeV2d:      fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadV2d(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteV2d(w, v.(V2d)) }),
	AttrTypeV3i:      fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadV3i(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteV3i(w, v.(V3i)) }),
	AttrTypeV3f:      fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadV3f(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteV3f(w, v.(V3f)) }),
	AttrTypeV3d:      fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadV3d(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteV3d(w, v.(V3d)) }),
	AttrTypeM33d:     fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadM33d(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteM33d(w, v.(M33d)) }),
	AttrTypeM44d:     fixedCodec(func(r *xdr.Reader) (interface{}, error) { return ReadM44d(r) }, func(w *xdr.BufferWriter, v interface{}) { WriteM44d(w, v.(M44d)) }),
	AttrTypeFloatVector: {
		read:  func(r *xdr.Reader, size int) (interface{}, error) { return ReadFloatVector(r, size) },
		write: func(w *xdr.BufferWriter, v interface{}) error { WriteFloatVector(w, v.(FloatVector)); return nil },
	},
}

// ReadAttribute reads a single attribute from the reader.
// Returns nil when the header terminator (empty name) is reached.
func ReadAttribute(r *xdr.Reader) (*Attribute, error) {
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}

	typeName, err := r.ReadString()
	if err != nil {
		return nil, err
	}

	size, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}

	attr := &Attribute{Name: name, Type: AttributeType(typeName)}

	codec, known := attrCodecs[attr.Type]
	if !known {
		rawBytes, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, err
		}
		attr.Value = rawBytes
		return attr, nil
	}

	attr.Value, err = codec.read(r, int(size))
	if err != nil {
		return nil, err
	}
	return attr, nil
}

// WriteAttribute writes an attribute to the writer.
func WriteAttribute(w *xdr.BufferWriter, attr *Attribute) error {
	w.WriteString(attr.Name)
	w.WriteString(string(attr.Type))

	valueWriter := xdr.NewBufferWriter(256)
	if err := writeAttributeValue(valueWriter, attr); err != nil {
		return err
	}

	w.WriteInt32(int32(valueWriter.Len()))
	w.WriteBytes(valueWriter.Bytes())

	return nil
}

// writeAttributeValue writes the value portion of an attribute to the buffer.
func writeAttributeValue(w *xdr.BufferWriter, attr *Attribute) error {
	codec, known := attrCodecs[attr.Type]
	if !known {
		if raw, ok := attr.Value.([]byte); ok {
			w.WriteBytes(raw)
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownAttributeType, attr.Type)
	}
	return codec.write(w, attr.Value)
}

// readStringVector reads a string vector attribute from the XDR reader.
// Each string is encoded as a 4-byte length followed by the string bytes.
func readStringVector(r *xdr.Reader, size int) ([]string, error) {
	if size == 0 {
		return []string{}, nil
	}

	data, err := r.ReadBytes(size)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0)
	inner := xdr.NewReader(data)
	for inner.Len() > 0 {
		strLen, err := inner.ReadInt32()
		if err != nil {
			return nil, err
		}
		strBytes, err := inner.ReadBytes(int(strLen))
		if err != nil {
			return nil, err
		}
		result = append(result, string(strBytes))
	}

	return result, nil
}

// writeStringVector writes a string vector to the buffer.
// Each string is written as a 4-byte length followed by the string bytes.
func writeStringVector(w *xdr.BufferWriter, strings []string) {
	for _, s := range strings {
		w.WriteInt32(int32(len(s)))
		w.WriteBytes([]byte(s))
	}
}

// readTileDescription reads a tile description from the XDR reader.
// The format is: xSize (4), ySize (4), mode (1 byte with level and rounding).
func readTileDescription(r *xdr.Reader) (TileDescription, error) {
	var td TileDescription

	xSize, err := r.ReadUint32()
	if err != nil {
		return td, err
	}
	ySize, err := r.ReadUint32()
	if err != nil {
		return td, err
	}
	mode, err := r.ReadByte()
	if err != nil {
		return td, err
	}

	td.XSize = xSize
	td.YSize = ySize
	td.Mode = LevelMode(mode & 0x0F)
	td.RoundingMode = LevelRoundingMode((mode >> 4) & 0x0F)
	return td, nil
}

// writeTileDescription writes a tile description to the buffer.
// The format is: xSize (4), ySize (4), mode (1 byte with level and rounding).
func writeTileDescription(w *xdr.BufferWriter, td TileDescription) {
	w.WriteUint32(td.XSize)
	w.WriteUint32(td.YSize)
	w.WriteByte(byte(td.Mode) | (byte(td.RoundingMode) << 4))
}
