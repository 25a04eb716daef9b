package pdf

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

// maxDecodedSize bounds the output of a single filter to guard against
// decompression bombs.
const maxDecodedSize = 256 << 20

// imageFilters are passed through untouched; the image decoder handles them.
var imageFilters = map[Name]bool{
	"DCTDecode": true, "DCT": true,
	"JPXDecode":      true,
	"JBIG2Decode":    true,
	"CCITTFaxDecode": true, "CCF": true,
}

// Filters returns the filter chain declared in the stream dictionary
func (s Stream) Filters() []Name {
	switch f := s.Dictionary.Get("Filter").(type) {
	case Name:
		return []Name{f}
	case Array:
		out := make([]Name, 0, len(f))
		for _, item := range f {
			if n, ok := item.(Name); ok {
				out = append(out, n)
			}
		}
		return out
	}
	return nil
}

// decodeParams returns the DecodeParms dictionary for filter i
func (s Stream) decodeParams(i int) Dictionary {
	switch p := s.Dictionary.Get("DecodeParms").(type) {
	case Dictionary:
		if i == 0 {
			return p
		}
	case Array:
		if i < len(p) {
			if d, ok := p[i].(Dictionary); ok {
				return d
			}
		}
	}
	return Dictionary{}
}

// Decode applies the stream's filter chain. Image codecs (DCT, JPX, JBIG2,
// CCITT) stop the chain and return the still-encoded image bytes.
func (s Stream) Decode() ([]byte, error) {
	data := s.Data
	for i, filter := range s.Filters() {
		if imageFilters[filter] {
			return data, nil
		}
		var err error
		data, err = applyFilter(data, filter, s.decodeParams(i))
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", filter, err)
		}
	}
	return data, nil
}

// applyFilter applies a single non-image filter
func applyFilter(data []byte, filter Name, params Dictionary) ([]byte, error) {
	switch filter {
	case "FlateDecode", "Fl":
		out, err := flateDecode(data)
		if err != nil {
			return nil, err
		}
		return applyPredictor(out, params)
	case "LZWDecode", "LZW":
		early := 1
		if ec, ok := params.GetInt("EarlyChange"); ok {
			early = int(ec)
		}
		out, err := lzwDecode(data, early)
		if err != nil {
			return nil, err
		}
		return applyPredictor(out, params)
	case "ASCIIHexDecode", "AHx":
		return asciiHexDecode(data)
	case "ASCII85Decode", "A85":
		return ascii85Decode(data)
	case "RunLengthDecode", "RL":
		return runLengthDecode(data)
	case "Crypt":
		// Identity crypt filter; real decryption happens at object load.
		return data, nil
	}
	return nil, fmt.Errorf("unsupported filter: %s", filter)
}

// flateDecode inflates zlib data. Truncated streams keep whatever was
// recovered, which matches how viewers treat slightly damaged files.
func flateDecode(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxDecodedSize+1))
	if len(out) > maxDecodedSize {
		return nil, errors.New("decoded stream too large")
	}
	if err != nil && len(out) == 0 {
		return nil, err
	}
	return out, nil
}

// applyPredictor undoes TIFF (2) and PNG (>=10) predictors
func applyPredictor(data []byte, params Dictionary) ([]byte, error) {
	predictor, _ := params.GetInt("Predictor")
	if predictor <= 1 {
		return data, nil
	}

	columns := int64(1)
	if c, ok := params.GetInt("Columns"); ok {
		columns = c
	}
	colors := int64(1)
	if c, ok := params.GetInt("Colors"); ok {
		colors = c
	}
	bpc := int64(8)
	if b, ok := params.GetInt("BitsPerComponent"); ok {
		bpc = b
	}

	bpp := int((colors*bpc + 7) / 8)
	rowLen := int((columns*colors*bpc + 7) / 8)
	if rowLen <= 0 {
		return nil, errors.New("invalid predictor parameters")
	}

	if predictor == 2 {
		if bpc != 8 {
			return data, nil
		}
		out := append([]byte(nil), data...)
		for row := 0; row+rowLen <= len(out); row += rowLen {
			for i := bpp; i < rowLen; i++ {
				out[row+i] += out[row+i-bpp]
			}
		}
		return out, nil
	}

	stride := rowLen + 1
	rows := len(data) / stride
	out := make([]byte, rows*rowLen)
	prev := make([]byte, rowLen)

	for row := 0; row < rows; row++ {
		src := data[row*stride+1 : (row+1)*stride]
		dst := out[row*rowLen : (row+1)*rowLen]
		kind := data[row*stride]
		for i := 0; i < rowLen; i++ {
			var left, upLeft byte
			if i >= bpp {
				left = dst[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch kind {
			case 1:
				dst[i] = src[i] + left
			case 2:
				dst[i] = src[i] + up
			case 3:
				dst[i] = src[i] + byte((int(left)+int(up))/2)
			case 4:
				dst[i] = src[i] + paeth(left, up, upLeft)
			default:
				dst[i] = src[i]
			}
		}
		copy(prev, dst)
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := absInt(p-int(a)), absInt(p-int(b)), absInt(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// asciiHexDecode decodes ASCIIHexDecode data up to the '>' marker
func asciiHexDecode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)/2)
	var hi byte
	half := false
	for _, c := range data {
		if c == '>' {
			break
		}
		if isWhitespace(c) {
			continue
		}
		v, ok := hexValue(c)
		if !ok {
			return nil, fmt.Errorf("invalid hex character %q", c)
		}
		if half {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		out = append(out, hi<<4)
	}
	return out, nil
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// ascii85Decode decodes ASCII85Decode data up to the '~>' marker
func ascii85Decode(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))
	out := make([]byte, 0, len(data)*4/5)
	var tuple uint32
	n := 0
	for _, c := range data {
		if c == '~' {
			break
		}
		if isWhitespace(c) {
			continue
		}
		if c == 'z' && n == 0 {
			out = append(out, 0, 0, 0, 0)
			continue
		}
		if c < '!' || c > 'u' {
			return nil, fmt.Errorf("invalid ASCII85 character %q", c)
		}
		tuple = tuple*85 + uint32(c-'!')
		n++
		if n == 5 {
			out = append(out, byte(tuple>>24), byte(tuple>>16), byte(tuple>>8), byte(tuple))
			tuple, n = 0, 0
		}
	}
	if n > 1 {
		for i := n; i < 5; i++ {
			tuple = tuple*85 + 84
		}
		for i := 0; i < n-1; i++ {
			out = append(out, byte(tuple>>(24-8*i)))
		}
	}
	return out, nil
}

// lzwDecode decodes PDF LZW data (MSB-first codes, optional early change)
func lzwDecode(data []byte, earlyChange int) ([]byte, error) {
	const (
		clearCode = 256
		eodCode   = 257
	)
	table := make([][]byte, 4096)
	for i := 0; i < 256; i++ {
		table[i] = []byte{byte(i)}
	}
	next, width := 258, 9
	var out, prev []byte
	bit := 0

	for bit+width <= len(data)*8 {
		code := 0
		for i := 0; i < width; i++ {
			pos := bit + i
			if data[pos/8]&(0x80>>(pos%8)) != 0 {
				code |= 1 << (width - 1 - i)
			}
		}
		bit += width

		switch {
		case code == eodCode:
			return out, nil
		case code == clearCode:
			next, width, prev = 258, 9, nil
			continue
		}

		var entry []byte
		switch {
		case code < next && table[code] != nil:
			entry = table[code]
		case code == next && prev != nil:
			entry = append(append([]byte(nil), prev...), prev[0])
		default:
			return nil, fmt.Errorf("invalid LZW code %d", code)
		}
		out = append(out, entry...)
		if len(out) > maxDecodedSize {
			return nil, errors.New("decoded stream too large")
		}

		if prev != nil && next < 4096 {
			table[next] = append(append([]byte(nil), prev...), entry[0])
			next++
			if next+earlyChange > 1<<width && width < 12 {
				width++
			}
		}
		prev = entry
	}
	return out, nil
}

// runLengthDecode decodes RunLengthDecode data
func runLengthDecode(data []byte) ([]byte, error) {
	var out []byte
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		switch {
		case n == 128:
			return out, nil
		case n < 128:
			if i+n+1 > len(data) {
				return nil, io.ErrUnexpectedEOF
			}
			out = append(out, data[i:i+n+1]...)
			i += n + 1
		default:
			if i >= len(data) {
				return nil, io.ErrUnexpectedEOF
			}
			out = append(out, bytes.Repeat(data[i:i+1], 257-n)...)
			i++
		}
	}
	return out, nil
}
