package compression

import (
	"encoding/binary"
	"errors"
)

// ErrPIZCorrupt is returned when a PIZ-compressed chunk is truncated or
// internally inconsistent.
var ErrPIZCorrupt = errors.New("compression: corrupt piz data")

// PIZCompress compresses numChannels planes of width*height uint16 samples
// using a per-channel 2D Haar wavelet transform followed by a single
// Huffman pass over every transformed sample. data is laid out as
// numChannels consecutive width*height planes, matching the channel
// ordering used to build the uncompressed chunk.
func PIZCompress(data []uint16, width, height, numChannels int) ([]byte, error) {
	if len(data) == 0 || width == 0 || height == 0 || numChannels == 0 {
		return nil, nil
	}

	planeSize := width * height
	transformed := make([]uint16, len(data))
	copy(transformed, data)
	for ch := 0; ch < numChannels; ch++ {
		plane := transformed[ch*planeSize : (ch+1)*planeSize]
		WaveletEncode(plane, width, height)
	}

	freqs := make([]uint64, 65536)
	for _, v := range transformed {
		freqs[v]++
	}

	enc := NewHuffmanEncoder(freqs)
	encoded := enc.Encode(transformed)
	lengths := enc.GetLengths()

	out := make([]byte, 0, len(encoded)+16)
	var hdr [4]byte

	binary.LittleEndian.PutUint32(hdr[:], uint32(len(transformed)))
	out = append(out, hdr[:]...)

	numSymbols := 0
	for _, l := range lengths {
		if l > 0 {
			numSymbols++
		}
	}
	binary.LittleEndian.PutUint32(hdr[:], uint32(numSymbols))
	out = append(out, hdr[:]...)

	var sym [3]byte
	for i, l := range lengths {
		if l == 0 {
			continue
		}
		binary.LittleEndian.PutUint16(sym[:2], uint16(i))
		sym[2] = byte(l)
		out = append(out, sym[:]...)
	}

	binary.LittleEndian.PutUint32(hdr[:], uint32(len(encoded)))
	out = append(out, hdr[:]...)
	out = append(out, encoded...)

	return out, nil
}

// PIZDecompress reverses PIZCompress, returning numChannels planes of
// width*height uint16 samples.
func PIZDecompress(data []byte, width, height, numChannels int) ([]uint16, error) {
	if len(data) == 0 || width == 0 || height == 0 || numChannels == 0 {
		return nil, nil
	}
	if len(data) < 8 {
		return nil, ErrPIZCorrupt
	}

	pos := 0
	numValues := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	numSymbols := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4

	if numValues != width*height*numChannels {
		return nil, ErrPIZCorrupt
	}

	lengths := make([]int, 65536)
	for i := 0; i < numSymbols; i++ {
		if pos+3 > len(data) {
			return nil, ErrPIZCorrupt
		}
		symbol := binary.LittleEndian.Uint16(data[pos:])
		length := data[pos+2]
		lengths[symbol] = int(length)
		pos += 3
	}

	if pos+4 > len(data) {
		return nil, ErrPIZCorrupt
	}
	encodedLen := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	if pos+encodedLen > len(data) {
		return nil, ErrPIZCorrupt
	}
	encoded := data[pos : pos+encodedLen]

	dec := NewHuffmanDecoder(lengths)
	values, err := dec.Decode(encoded, numValues)
	if err != nil {
		return nil, ErrPIZCorrupt
	}

	planeSize := width * height
	for ch := 0; ch < numChannels; ch++ {
		plane := values[ch*planeSize : (ch+1)*planeSize]
		WaveletDecode(plane, width, height)
	}

	return values, nil
}
