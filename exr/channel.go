package exr

import (
	"sort"
	"strings"

	"github.com/exrforge/openexr/internal/xdr"
)

// PixelType identifies the storage type of a channel's samples.
type PixelType int32

const (
	// PixelTypeUint stores samples as unsigned 32-bit integers.
	PixelTypeUint PixelType = 0
	// PixelTypeHalf stores samples as 16-bit floating point.
	PixelTypeHalf PixelType = 1
	// PixelTypeFloat stores samples as 32-bit floating point.
	PixelTypeFloat PixelType = 2
)

// String returns a wire-compatible name for the pixel type.
func (pt PixelType) String() string {
	switch pt {
	case PixelTypeUint:
		return "uint"
	case PixelTypeHalf:
		return "half"
	case PixelTypeFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Size returns the number of bytes a single sample of this type occupies.
func (pt PixelType) Size() int {
	switch pt {
	case PixelTypeUint:
		return 4
	case PixelTypeHalf:
		return 2
	case PixelTypeFloat:
		return 4
	default:
		return 0
	}
}

// Channel describes one image channel: its sample type, subsampling
// factors, and whether it represents a linear (as opposed to
// perceptually encoded) quantity.
type Channel struct {
	Name      string
	Type      PixelType
	PLinear   bool
	XSampling int32
	YSampling int32
}

// NewChannel returns a channel with 1x1 sampling and PLinear false.
func NewChannel(name string, pt PixelType) Channel {
	return Channel{Name: name, Type: pt, XSampling: 1, YSampling: 1}
}

// Layer returns the layer portion of a dotted channel name, e.g.
// "diffuse" for "diffuse.R" or "light.specular" for "light.specular.R".
// A channel with no dot belongs to the root layer ("").
func (c Channel) Layer() string {
	i := strings.LastIndexByte(c.Name, '.')
	if i < 0 {
		return ""
	}
	return c.Name[:i]
}

// BaseName returns the channel name with its layer prefix stripped.
func (c Channel) BaseName() string {
	i := strings.LastIndexByte(c.Name, '.')
	if i < 0 {
		return c.Name
	}
	return c.Name[i+1:]
}

// ChannelList holds the ordered set of channels in a header's "channels"
// attribute. Channel names are unique within a list.
type ChannelList struct {
	channels []Channel
}

// NewChannelList returns an empty channel list.
func NewChannelList() *ChannelList {
	return &ChannelList{}
}

// Len returns the number of channels.
func (cl *ChannelList) Len() int {
	return len(cl.channels)
}

// Add inserts a channel. It returns false without modifying the list if
// a channel with the same name already exists.
func (cl *ChannelList) Add(c Channel) bool {
	if cl.Get(c.Name) != nil {
		return false
	}
	cl.channels = append(cl.channels, c)
	return true
}

// Get returns a pointer to the channel with the given name, or nil.
func (cl *ChannelList) Get(name string) *Channel {
	for i := range cl.channels {
		if cl.channels[i].Name == name {
			return &cl.channels[i]
		}
	}
	return nil
}

// At returns the channel at the given index.
func (cl *ChannelList) At(i int) *Channel {
	return &cl.channels[i]
}

// Names returns the names of every channel, in list order.
func (cl *ChannelList) Names() []string {
	names := make([]string, len(cl.channels))
	for i, c := range cl.channels {
		names[i] = c.Name
	}
	return names
}

// Channels returns a defensive copy of the channel slice.
func (cl *ChannelList) Channels() []Channel {
	out := make([]Channel, len(cl.channels))
	copy(out, cl.channels)
	return out
}

// HasRGB reports whether the list contains R, G, and B channels.
func (cl *ChannelList) HasRGB() bool {
	return cl.Get("R") != nil && cl.Get("G") != nil && cl.Get("B") != nil
}

// HasAlpha reports whether the list contains an A channel.
func (cl *ChannelList) HasAlpha() bool {
	return cl.Get("A") != nil
}

// HasRGBA reports whether the list contains R, G, B, and A channels.
func (cl *ChannelList) HasRGBA() bool {
	return cl.HasRGB() && cl.HasAlpha()
}

// Layers returns the distinct, non-root layer names present in the list.
func (cl *ChannelList) Layers() []string {
	seen := make(map[string]bool)
	var layers []string
	for _, c := range cl.channels {
		l := c.Layer()
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		layers = append(layers, l)
	}
	sort.Strings(layers)
	return layers
}

// ChannelsInLayer returns the channels belonging to the given layer
// ("" for the root layer).
func (cl *ChannelList) ChannelsInLayer(layer string) []Channel {
	var out []Channel
	for _, c := range cl.channels {
		if c.Layer() == layer {
			out = append(out, c)
		}
	}
	return out
}

// SortByName orders the channels lexicographically by name.
func (cl *ChannelList) SortByName() {
	sort.Slice(cl.channels, func(i, j int) bool {
		return cl.channels[i].Name < cl.channels[j].Name
	})
}

// SortedByName returns a copy of the channel list ordered lexicographically
// by name, leaving the receiver's order unchanged.
func (cl *ChannelList) SortedByName() []Channel {
	out := cl.Channels()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// SortForCompression orders channels the way compressors expect: grouped
// by pixel type (half channels first, since they compress best together),
// then by name within each type.
func (cl *ChannelList) SortForCompression() {
	sort.Slice(cl.channels, func(i, j int) bool {
		a, b := cl.channels[i], cl.channels[j]
		if a.Type != b.Type {
			return typeOrder(a.Type) < typeOrder(b.Type)
		}
		return a.Name < b.Name
	})
}

func typeOrder(pt PixelType) int {
	switch pt {
	case PixelTypeHalf:
		return 0
	case PixelTypeFloat:
		return 1
	case PixelTypeUint:
		return 2
	default:
		return 3
	}
}

// BytesPerPixel returns the sum of each channel's sample size, ignoring
// subsampling. Useful for computing uncompressed chunk sizes.
func (cl *ChannelList) BytesPerPixel() int {
	total := 0
	for _, c := range cl.channels {
		total += c.Type.Size()
	}
	return total
}

// BytesPerScanline returns the number of bytes a single scanline of the
// given pixel width occupies, accounting for each channel's XSampling.
func (cl *ChannelList) BytesPerScanline(width int) int {
	total := 0
	for _, c := range cl.channels {
		xs := int(c.XSampling)
		if xs < 1 {
			xs = 1
		}
		chWidth := (width + xs - 1) / xs
		total += chWidth * c.Type.Size()
	}
	return total
}

// ReadChannelList reads a channel list until it hits the terminating
// empty-name marker.
func ReadChannelList(r *xdr.Reader) (*ChannelList, error) {
	cl := NewChannelList()
	for {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		if name == "" {
			return cl, nil
		}

		typ, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		pLinear, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if _, err := r.ReadBytes(3); err != nil {
			return nil, err
		}
		xSampling, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		ySampling, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}

		cl.channels = append(cl.channels, Channel{
			Name:      name,
			Type:      PixelType(typ),
			PLinear:   pLinear != 0,
			XSampling: xSampling,
			YSampling: ySampling,
		})
	}
}

// WriteChannelList writes a channel list followed by the terminating
// empty-name marker.
func WriteChannelList(w *xdr.BufferWriter, cl *ChannelList) {
	for _, c := range cl.channels {
		w.WriteString(c.Name)
		w.WriteInt32(int32(c.Type))
		if c.PLinear {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
		w.WriteBytes([]byte{0, 0, 0})
		w.WriteInt32(c.XSampling)
		w.WriteInt32(c.YSampling)
	}
	w.WriteByte(0)
}
