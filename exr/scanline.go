package exr

import (
	"errors"
	"io"
	"math"

	"github.com/exrforge/openexr/compression"
	"github.com/exrforge/openexr/half"
	"github.com/exrforge/openexr/internal/predictor"
)

// Scanline reader/writer errors.
var (
	ErrNoFrameBuffer      = errors.New("exr: no frame buffer set")
	ErrScanlineOutOfRange = errors.New("exr: scanline range out of data window")
	ErrTileOutOfRange     = errors.New("exr: tile coordinates out of range")
)

// ScanlineWriter writes scanline chunks to a single-part, untiled EXR
// stream.
type ScanlineWriter struct {
	w      *Writer
	header *Header
	fb     *FrameBuffer
}

// NewScanlineWriter begins a new scanline EXR stream. h must not have a
// tile description.
func NewScanlineWriter(ws io.WriteSeeker, h *Header) (*ScanlineWriter, error) {
	if h.IsTiled() {
		return nil, ErrInvalidPartType
	}
	if !h.Has(AttrNameType) {
		h.Set(&Attribute{Name: AttrNameType, Type: AttrTypeString, Value: PartTypeScanline})
	}
	w, err := NewMultiPartWriter(ws, []*Header{h})
	if err != nil {
		return nil, err
	}
	return &ScanlineWriter{w: w, header: h}, nil
}

// Header returns the header this writer was created with.
func (sw *ScanlineWriter) Header() *Header {
	return sw.header
}

// SetFrameBuffer sets the frame buffer pixels are read from when
// WritePixels is called.
func (sw *ScanlineWriter) SetFrameBuffer(fb *FrameBuffer) {
	sw.fb = fb
}

// WritePixels compresses and writes every scanline chunk overlapping
// [y1, y2], inclusive, in the data window's coordinate system.
func (sw *ScanlineWriter) WritePixels(y1, y2 int) error {
	if sw.fb == nil {
		return ErrNoFrameBuffer
	}
	dw := sw.header.DataWindow()
	minY, maxY := int(dw.Min.Y), int(dw.Max.Y)
	if y1 < minY || y2 > maxY || y1 > y2 {
		return ErrScanlineOutOfRange
	}

	width := int(dw.Width())
	comp := sw.header.Compression()
	linesPerChunk := comp.ScanlinesPerChunk()
	cl := sw.header.Channels()
	if cl == nil {
		return ErrInvalidHeader
	}

	for y := y1; y <= y2; {
		chunkY := minY + ((y - minY) / linesPerChunk) * linesPerChunk
		linesInChunk := linesPerChunk
		if chunkY+linesInChunk-1 > maxY {
			linesInChunk = maxY - chunkY + 1
		}

		uncompressed := buildScanlineData(sw.fb, cl, width, chunkY, linesInChunk)
		compressed, err := compressChunkData(uncompressed, width, linesInChunk, cl, comp)
		if err != nil {
			return err
		}
		if err := sw.w.WriteChunkPart(0, int32(chunkY), compressed); err != nil {
			return err
		}

		y = chunkY + linesInChunk
	}
	return nil
}

// Close finalizes the stream, patching in the real chunk offset table.
func (sw *ScanlineWriter) Close() error {
	return sw.w.Close()
}

// ScanlineReader reads scanline chunks from a single part of an EXR
// file.
type ScanlineReader struct {
	file   *File
	part   int
	header *Header
	fb     *FrameBuffer
}

// NewScanlineReader returns a reader for part 0 of f.
func NewScanlineReader(f *File) (*ScanlineReader, error) {
	return NewScanlineReaderPart(f, 0)
}

// NewScanlineReaderPart returns a reader for the given part of f.
func NewScanlineReaderPart(f *File, part int) (*ScanlineReader, error) {
	if f == nil {
		return nil, ErrInvalidFile
	}
	h := f.Header(part)
	if h == nil {
		return nil, ErrPartNotFound
	}
	if h.IsTiled() {
		return nil, ErrInvalidPartType
	}
	return &ScanlineReader{file: f, part: part, header: h}, nil
}

// Header returns the part's header.
func (sr *ScanlineReader) Header() *Header {
	return sr.header
}

// DataWindow returns the part's data window.
func (sr *ScanlineReader) DataWindow() Box2i {
	return sr.header.DataWindow()
}

// SetFrameBuffer sets the frame buffer pixels are written into when
// ReadPixels is called.
func (sr *ScanlineReader) SetFrameBuffer(fb *FrameBuffer) {
	sr.fb = fb
}

// ReadPixels decompresses and unpacks every scanline chunk overlapping
// [y1, y2], inclusive, into the bound frame buffer.
func (sr *ScanlineReader) ReadPixels(y1, y2 int) error {
	if sr.fb == nil {
		return ErrNoFrameBuffer
	}
	dw := sr.header.DataWindow()
	minY, maxY := int(dw.Min.Y), int(dw.Max.Y)
	if y1 < minY || y2 > maxY || y1 > y2 {
		return ErrScanlineOutOfRange
	}

	width := int(dw.Width())
	comp := sr.header.Compression()
	linesPerChunk := comp.ScanlinesPerChunk()
	cl := sr.header.Channels()
	if cl == nil {
		return ErrInvalidHeader
	}

	firstChunk := (y1 - minY) / linesPerChunk
	lastChunk := (y2 - minY) / linesPerChunk
	numChunks := lastChunk - firstChunk + 1

	return ParallelForWithError(numChunks, func(i int) error {
		chunkIndex := firstChunk + i

		chunkY, compressed, err := sr.file.ReadRawChunk(sr.part, chunkIndex)
		if err != nil {
			return err
		}
		linesInChunk := linesPerChunk
		if int(chunkY)+linesInChunk-1 > maxY {
			linesInChunk = maxY - int(chunkY) + 1
		}

		uncompressed, err := decompressChunkData(compressed, width, linesInChunk, cl, comp)
		if err != nil {
			return err
		}
		unpackScanlineData(sr.fb, cl, uncompressed, width, int(chunkY), linesInChunk)
		return nil
	})
}

// decompressChunkData reverses compressChunkData for a chunk of width x
// height samples across the channels in cl.
func decompressChunkData(data []byte, width, height int, cl *ChannelList, comp Compression) ([]byte, error) {
	expectedSize := width * height * cl.BytesPerPixel()

	switch comp {
	case CompressionNone:
		return data, nil

	case CompressionRLE:
		decoded, err := compression.RLEDecompress(data, expectedSize)
		if err != nil {
			return nil, err
		}
		predictor.DecodeSIMD(decoded)
		return decoded, nil

	case CompressionZIPS, CompressionZIP:
		inflated, err := compression.ZIPDecompress(data, expectedSize)
		if err != nil {
			return nil, err
		}
		var deinterleaved []byte
		if len(inflated) >= 32 {
			deinterleaved = compression.DeinterleaveFast(inflated)
		} else {
			deinterleaved = compression.Deinterleave(inflated)
		}
		predictor.DecodeSIMD(deinterleaved)
		return deinterleaved, nil

	case CompressionPIZ:
		values, err := compression.PIZDecompress(data, width, height, cl.Len())
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(values)*2)
		for i, v := range values {
			out[i*2] = byte(v)
			out[i*2+1] = byte(v >> 8)
		}
		return out, nil

	case CompressionPXR24:
		sortedChannels := cl.SortedByName()
		channels := make([]compression.ChannelInfo, len(sortedChannels))
		for i, ch := range sortedChannels {
			chWidth := (width + int(ch.XSampling) - 1) / int(ch.XSampling)
			channels[i] = compression.ChannelInfo{
				Type:   pxrChannelType(ch.Type),
				Width:  chWidth,
				Height: height,
			}
		}
		return compression.PXR24Decompress(data, channels, width, height, expectedSize)

	case CompressionB44, CompressionB44A:
		sortedChannels := cl.SortedByName()
		channels := make([]compression.B44ChannelInfo, len(sortedChannels))
		for i, ch := range sortedChannels {
			chWidth := (width + int(ch.XSampling) - 1) / int(ch.XSampling)
			channels[i] = compression.B44ChannelInfo{
				Type:   pxrChannelType(ch.Type),
				Width:  chWidth,
				Height: height,
			}
		}
		return compression.B44Decompress(data, channels, width, height, expectedSize)

	case CompressionDWAA:
		out := make([]byte, expectedSize)
		if err := compression.DecompressDWAA(data, out, width, height); err != nil {
			return nil, err
		}
		return out, nil

	case CompressionDWAB:
		out := make([]byte, expectedSize)
		if err := compression.DecompressDWAB(data, out, width, height); err != nil {
			return nil, err
		}
		return out, nil

	default:
		return data, nil
	}
}

func pxrChannelType(pt PixelType) int {
	switch pt {
	case PixelTypeUint:
		return 0
	case PixelTypeHalf:
		return 1
	case PixelTypeFloat:
		return 2
	default:
		return 1
	}
}

// unpackScanlineData scatters decompressed chunk bytes into a frame
// buffer's slices.
func unpackScanlineData(fb *FrameBuffer, cl *ChannelList, data []byte, width, startY, numLines int) {
	sortedChannels := cl.SortedByName()

	offset := 0
	for y := startY; y < startY+numLines; y++ {
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
						slice.SetHalf(x, y, half.FromBits(bits))
					}
					offset += 2
				case PixelTypeFloat:
					if offset+4 > len(data) {
						return
					}
					bits := uint32(data[offset]) | uint32(data[offset+1])<<8 |
						uint32(data[offset+2])<<16 | uint32(data[offset+3])<<24
					if slice != nil {
						slice.SetFloat32(x, y, math.Float32frombits(bits))
					}
					offset += 4
				case PixelTypeUint:
					if offset+4 > len(data) {
						return
					}
					bits := uint32(data[offset]) | uint32(data[offset+1])<<8 |
						uint32(data[offset+2])<<16 | uint32(data[offset+3])<<24
					if slice != nil {
						slice.SetUint32(x, y, bits)
					}
					offset += 4
				}
			}
		}
	}
}
