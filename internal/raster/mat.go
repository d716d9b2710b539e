package raster

import (
	"encoding/binary"
	"fmt"
	"math"

	"gocv.io/x/gocv"
)

// depthMask extracts the element depth (CV_8U, CV_16U, ...) from a Mat type.
const depthMask = 7

// FromMat converts an OpenCV image to an RGB raster. Three-channel input is
// read as BGR. 8U and 16U samples are scaled to [0,1]; 32F is copied as is.
func FromMat(m gocv.Mat) (Raster, error) {
	if m.Empty() {
		return Raster{}, fmt.Errorf("empty mat")
	}
	channels := m.Channels()
	if channels != 1 && channels != 3 {
		return Raster{}, fmt.Errorf("unsupported channel count %d", channels)
	}

	var scale float32
	switch gocv.MatType(int(m.Type()) & depthMask) {
	case gocv.MatTypeCV8U:
		scale = 1.0 / math.MaxUint8
	case gocv.MatTypeCV16U:
		scale = 1.0 / math.MaxUint16
	case gocv.MatTypeCV32F:
		scale = 1
	default:
		return Raster{}, fmt.Errorf("unsupported mat type %v", m.Type())
	}

	src := m
	if channels == 3 {
		rgb := gocv.NewMat()
		defer rgb.Close()
		if err := gocv.CvtColor(m, &rgb, gocv.ColorBGRToRGB); err != nil {
			return Raster{}, fmt.Errorf("BGR to RGB: %w", err)
		}
		src = rgb
	}

	f := gocv.NewMat()
	defer f.Close()
	floatType := gocv.MatTypeCV32FC1
	if channels == 3 {
		floatType = gocv.MatTypeCV32FC3
	}
	if err := src.ConvertToWithParams(&f, floatType, scale, 0); err != nil {
		return Raster{}, fmt.Errorf("convert to float: %w", err)
	}
	return FromFloatMat(f)
}

// FromFloatMat copies a CV_32F Mat into a raster without reordering
// channels.
func FromFloatMat(m gocv.Mat) (Raster, error) {
	data, err := m.DataPtrFloat32()
	if err != nil {
		return Raster{}, fmt.Errorf("read float data: %w", err)
	}
	r := New(m.Rows(), m.Cols(), m.Channels())
	if len(data) != len(r.Pix) {
		return Raster{}, fmt.Errorf("float mat has %d samples, want %d", len(data), len(r.Pix))
	}
	copy(r.Pix, data)
	return r, nil
}

// ToFloatMat copies the raster into a CV_32F Mat without reordering
// channels. Only channel-independent operations (resize) should see it.
func ToFloatMat(r Raster) (gocv.Mat, error) {
	if err := r.Validate(); err != nil {
		return gocv.Mat{}, err
	}
	var mt gocv.MatType
	switch r.Channels {
	case 1:
		mt = gocv.MatTypeCV32FC1
	case 3:
		mt = gocv.MatTypeCV32FC3
	case 4:
		mt = gocv.MatTypeCV32FC4
	default:
		return gocv.Mat{}, fmt.Errorf("unsupported channel count %d", r.Channels)
	}
	buf := make([]byte, 4*len(r.Pix))
	for i, v := range r.Pix {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return matFromBytes(r.Rows, r.Cols, mt, buf)
}

// ToBGR8 quantizes an RGB raster into an 8-bit BGR Mat.
func ToBGR8(r Raster) (gocv.Mat, error) {
	if err := checkRGB(r); err != nil {
		return gocv.Mat{}, err
	}
	buf := make([]byte, len(r.Pix))
	for i := 0; i < len(r.Pix); i += 3 {
		buf[i] = Quantize8(r.Pix[i+2])
		buf[i+1] = Quantize8(r.Pix[i+1])
		buf[i+2] = Quantize8(r.Pix[i])
	}
	return matFromBytes(r.Rows, r.Cols, gocv.MatTypeCV8UC3, buf)
}

// ToGray8 quantizes a single-channel raster into a CV_8UC1 Mat.
func ToGray8(r Raster) (gocv.Mat, error) {
	if err := r.Validate(); err != nil {
		return gocv.Mat{}, err
	}
	if r.Channels != 1 {
		return gocv.Mat{}, fmt.Errorf("expected 1 channel, got %d", r.Channels)
	}
	buf := make([]byte, len(r.Pix))
	for i, v := range r.Pix {
		buf[i] = Quantize8(v)
	}
	return matFromBytes(r.Rows, r.Cols, gocv.MatTypeCV8UC1, buf)
}

// ToBGR16 quantizes an RGB raster into a 16-bit BGR Mat.
func ToBGR16(r Raster) (gocv.Mat, error) {
	if err := checkRGB(r); err != nil {
		return gocv.Mat{}, err
	}
	buf := make([]byte, 2*len(r.Pix))
	for i := 0; i < len(r.Pix); i += 3 {
		binary.LittleEndian.PutUint16(buf[2*i:], Quantize16(r.Pix[i+2]))
		binary.LittleEndian.PutUint16(buf[2*i+2:], Quantize16(r.Pix[i+1]))
		binary.LittleEndian.PutUint16(buf[2*i+4:], Quantize16(r.Pix[i]))
	}
	return matFromBytes(r.Rows, r.Cols, gocv.MatTypeCV16UC3, buf)
}

func checkRGB(r Raster) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Channels != 3 {
		return fmt.Errorf("expected 3 channels, got %d", r.Channels)
	}
	return nil
}

// matFromBytes builds a Mat that owns its data. NewMatFromBytes may alias
// the Go slice, so the result is cloned. Multi-byte samples are little
// endian, matching OpenCV's native layout on supported hosts.
func matFromBytes(rows, cols int, mt gocv.MatType, buf []byte) (gocv.Mat, error) {
	view, err := gocv.NewMatFromBytes(rows, cols, mt, buf)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("wrap %dx%d buffer: %w", rows, cols, err)
	}
	defer view.Close()
	return view.Clone(), nil
}
