package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
)

// maxImagePixels bounds decoded image size
const maxImagePixels = 64 << 20

// inlineAbbreviations expands the short keys allowed in inline images
var inlineAbbreviations = map[Name]Name{
	"BPC": "BitsPerComponent", "CS": "ColorSpace", "D": "Decode",
	"DP": "DecodeParms", "F": "Filter", "H": "Height", "IM": "ImageMask",
	"I": "Interpolate", "W": "Width",
}

var inlineValues = map[Name]Name{
	"G": "DeviceGray", "RGB": "DeviceRGB", "CMYK": "DeviceCMYK", "I": "Indexed",
	"AHx": "ASCIIHexDecode", "A85": "ASCII85Decode", "LZW": "LZWDecode",
	"Fl": "FlateDecode", "RL": "RunLengthDecode", "DCT": "DCTDecode", "CCF": "CCITTFaxDecode",
}

// expandInlineImage turns BI operands into a regular image stream
func expandInlineImage(dict Dictionary, data []byte) Stream {
	out := make(Dictionary, len(dict))
	for k, v := range dict {
		if long, ok := inlineAbbreviations[k]; ok {
			k = long
		}
		switch val := v.(type) {
		case Name:
			if long, ok := inlineValues[val]; ok {
				v = long
			}
		case Array:
			expanded := make(Array, len(val))
			for i, item := range val {
				if n, ok := item.(Name); ok {
					if long, ok := inlineValues[n]; ok {
						item = long
					}
				}
				expanded[i] = item
			}
			v = expanded
		}
		out[k] = v
	}
	out["Subtype"] = Name("Image")
	return Stream{Dictionary: out, Data: data}
}

// decodeImage decodes an image XObject. Stencil masks are painted with fill.
func (r *PageRenderer) decodeImage(stream Stream, resources Dictionary, fill color.RGBA) (image.Image, error) {
	dict := stream.Dictionary
	width, _ := r.intValue(dict.Get("Width"))
	height, _ := r.intValue(dict.Get("Height"))
	if width <= 0 || height <= 0 || width*height > maxImagePixels {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, err
	}

	filters := stream.Filters()
	if len(filters) > 0 {
		switch filters[len(filters)-1] {
		case "DCTDecode", "DCT":
			return jpeg.Decode(bytes.NewReader(data))
		case "JPXDecode", "JBIG2Decode", "CCITTFaxDecode", "CCF":
			return nil, fmt.Errorf("image filter %s not supported", filters[len(filters)-1])
		}
	}

	if mask, _ := r.doc.ResolveObject(dict.Get("ImageMask")); mask == Boolean(true) {
		invert := false
		if dec, ok := r.doc.resolveArray(dict.Get("Decode")); ok && len(dec) == 2 {
			if v, _ := toFloat(dec[0]); v == 1 {
				invert = true
			}
		}
		return stencilImage(data, width, height, fill, invert), nil
	}

	bpc := 8
	if v, ok := r.intValue(dict.Get("BitsPerComponent")); ok {
		bpc = v
	}
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return nil, fmt.Errorf("unsupported BitsPerComponent %d", bpc)
	}

	cs := r.resolveColorSpace(dict.Get("ColorSpace"), resources)
	if cs.components == 0 {
		cs = colorSpace{family: "DeviceGray", components: 1}
	}
	return sampledImage(data, width, height, bpc, cs)
}

func (r *PageRenderer) intValue(obj Object) (int, bool) {
	resolved, err := r.doc.ResolveObject(obj)
	if err != nil {
		return 0, false
	}
	f, ok := toFloat(resolved)
	return int(f), ok
}

// stencilImage builds an alpha image from a 1-bit mask; 0 bits are painted
func stencilImage(data []byte, w, h int, fill color.RGBA, invert bool) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	stride := (w + 7) / 8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*stride + x/8
			if i >= len(data) {
				return img
			}
			bit := data[i]>>(7-uint(x%8))&1 == 1
			if bit == invert {
				img.SetNRGBA(x, y, color.NRGBA{fill.R, fill.G, fill.B, 255})
			}
		}
	}
	return img
}

// sampledImage converts packed samples into an RGBA image
func sampledImage(data []byte, w, h, bpc int, cs colorSpace) (image.Image, error) {
	comps := cs.components
	if cs.indexed != nil {
		comps = 1
	}
	rowBits := w * comps * bpc
	stride := (rowBits + 7) / 8
	if len(data) < stride*h {
		// Short data is common; render what is there.
		if len(data) < stride {
			return nil, errors.New("image data too short")
		}
		h = len(data) / stride
	}

	maxVal := float64(int(1)<<uint(bpc) - 1)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	v := make([]float64, comps)
	for y := 0; y < h; y++ {
		row := data[y*stride : (y+1)*stride]
		bit := 0
		for x := 0; x < w; x++ {
			for c := 0; c < comps; c++ {
				s := readSample(row, bit, bpc)
				bit += bpc
				if cs.indexed != nil {
					v[c] = float64(s)
				} else {
					v[c] = float64(s) / maxVal
				}
			}
			img.SetRGBA(x, y, cs.toRGBA(v))
		}
	}
	return img, nil
}

func readSample(row []byte, bit, bpc int) int {
	switch bpc {
	case 8:
		return int(row[bit/8])
	case 16:
		return int(row[bit/8])<<8 | int(row[bit/8+1])
	}
	b := row[bit/8]
	shift := 8 - bpc - bit%8
	return int(b>>uint(shift)) & (1<<uint(bpc) - 1)
}
