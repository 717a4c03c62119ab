// Package texturex implements decoding, validation and hashing of player
// texture images (skins and capes).
package texturex

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	"image/png"
)

// TextureType distinguishes the two kinds of player texture.
type TextureType string

const (
	TypeSkin TextureType = "skin"
	TypeCape TextureType = "cape"
)

// ErrInvalidImage is returned when the input bytes are not a decodable PNG.
type ErrInvalidImage struct{ cause error }

func (e *ErrInvalidImage) Error() string { return fmt.Sprintf("invalid image: %v", e.cause) }
func (e *ErrInvalidImage) Unwrap() error { return e.cause }

// ErrBadDimensions is returned when the image dimensions are not valid for
// the given texture type.
type ErrBadDimensions struct {
	Type   TextureType
	Width  int
	Height int
}

func (e *ErrBadDimensions) Error() string {
	return fmt.Sprintf("invalid %s dimensions %dx%d", e.Type, e.Width, e.Height)
}

// Decode parses raw PNG bytes into an NRGBA image. Any other image format
// is rejected.
func Decode(data []byte) (*image.NRGBA, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ErrInvalidImage{cause: err}
	}
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba, nil
	}
	bounds := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	return nrgba, nil
}

// Encode serializes an image back to PNG bytes. Textures are always stored
// in this normalized encoding so the stored file matches the hashed pixels.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ValidDimensions reports whether w x h is an acceptable size for the given
// texture type.
//
// Skins must be square or half-height, in 64 pixel multiples. Capes accept
// the standard 64x32 family and the legacy 22x17 family.
func ValidDimensions(t TextureType, w, h int) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	switch t {
	case TypeSkin:
		return w%64 == 0 && (h == w || h*2 == w)
	case TypeCape:
		if w%64 == 0 && h%32 == 0 {
			return true
		}
		return w%22 == 0 && h%17 == 0
	default:
		return false
	}
}

// ValidateDimensions returns an *ErrBadDimensions when the image size is not
// acceptable for the given texture type.
func ValidateDimensions(t TextureType, img image.Image) error {
	b := img.Bounds()
	if !ValidDimensions(t, b.Dx(), b.Dy()) {
		return &ErrBadDimensions{Type: t, Width: b.Dx(), Height: b.Dy()}
	}
	return nil
}

// Hash computes the canonical content hash of a texture image.
//
// The hash is a SHA-256 over a fixed serialization of the pixel grid: the
// width and height as big-endian uint32 values, followed by one A,R,G,B
// quad per pixel in column-major order. Fully transparent pixels contribute
// zeroed color channels, so images that differ only in the hidden color of
// transparent pixels hash identically.
func Hash(img *image.NRGBA) string {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	buf := make([]byte, w*h*4+8)
	binary.BigEndian.PutUint32(buf[0:4], uint32(w))
	binary.BigEndian.PutUint32(buf[4:8], uint32(h))

	pos := 8
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			r, g, bl, a := img.Pix[off], img.Pix[off+1], img.Pix[off+2], img.Pix[off+3]
			if a == 0 {
				r, g, bl = 0, 0, 0
			}
			buf[pos] = a
			buf[pos+1] = r
			buf[pos+2] = g
			buf[pos+3] = bl
			pos += 4
		}
	}

	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// Normalize decodes, validates and re-encodes a texture in one step,
// returning the canonical PNG bytes, the content hash, and the decoded
// image.
func Normalize(t TextureType, data []byte) ([]byte, string, *image.NRGBA, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, "", nil, err
	}
	if err := ValidateDimensions(t, img); err != nil {
		return nil, "", nil, err
	}
	encoded, err := Encode(img)
	if err != nil {
		return nil, "", nil, err
	}
	return encoded, Hash(img), img, nil
}
