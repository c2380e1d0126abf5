// Package codec implements the primitive encoding from spec §4.A:
// LEB128 integers (zig-zagged for signed values), little-endian floats,
// length-prefixed UTF-8 strings, date/time, decimal, and booleans.
//
// Unlike the teacher's HPROF BinaryReader (big-endian, fixed-width
// fields only), this wire format is little-endian and variable-length
// throughout, but the shape of the type — a bufio-backed reader
// tracking bytes consumed, paired with a writer tracking bytes
// emitted — follows the same split the teacher uses between its
// BinaryReader and the writer half of the heap dumper.
package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/mabhi256/objwire/internal/wire/model"
)

// Reader decodes primitives from an underlying byte stream, tracking
// how many bytes have been consumed so the session façade can assert
// byte conservation (spec §8, property 2).
type Reader struct {
	r         *bufio.Reader
	bytesRead int64
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

func (r *Reader) BytesRead() int64 { return r.bytesRead }

func (r *Reader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, truncated(err)
	}
	r.bytesRead++
	return b, nil
}

func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, model.NewError(model.StreamCorrupted, fmt.Sprintf("negative length %d", n))
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(r.r, buf)
	r.bytesRead += int64(read)
	if err != nil {
		return nil, truncated(err)
	}
	return buf, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	if b > 1 {
		return false, model.NewError(model.StreamCorrupted, fmt.Sprintf("invalid bool byte 0x%02x", b))
	}
	return b == 1, nil
}

// ReadUvarint decodes an unsigned LEB128 integer.
func (r *Reader) ReadUvarint() (uint64, error) {
	var result uint64
	var shift uint
	for {
		if shift >= 64 {
			return 0, model.NewError(model.StreamCorrupted, "varint overflows 64 bits")
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// ReadVarint decodes a zig-zag + LEB128 signed integer.
func (r *Reader) ReadVarint() (int64, error) {
	u, err := r.ReadUvarint()
	if err != nil {
		return 0, err
	}
	return int64(u>>1) ^ -int64(u&1), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (r *Reader) ReadFloat64() (float64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// ReadString decodes a length-prefixed UTF-8 string. A length of -1
// (the zig-zagged encoding of -1) denotes a null string.
func (r *Reader) ReadString() (string, bool, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return "", false, err
	}
	if n == -1 {
		return "", true, nil
	}
	if n < 0 {
		return "", false, model.NewError(model.StreamCorrupted, fmt.Sprintf("negative string length %d", n))
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", false, err
	}
	return string(b), false, nil
}

// ReadByteSlice decodes a length-prefixed byte array, following the
// same null-length convention as ReadString.
func (r *Reader) ReadByteSlice() ([]byte, bool, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return nil, false, err
	}
	if n == -1 {
		return nil, true, nil
	}
	if n < 0 {
		return nil, false, model.NewError(model.StreamCorrupted, fmt.Sprintf("negative array length %d", n))
	}
	b, err := r.ReadBytes(int(n))
	return b, false, err
}

func (r *Reader) ReadDateTime() (int64, model.DateTimeKind, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, 0, err
	}
	ticks := int64(binary.LittleEndian.Uint64(b))
	kind, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	return ticks, model.DateTimeKind(kind), nil
}

func (r *Reader) ReadDecimal() (model.Decimal, error) {
	b, err := r.ReadBytes(16)
	if err != nil {
		return model.Decimal{}, err
	}
	return model.Decimal{
		Flags: binary.LittleEndian.Uint32(b[0:4]),
		Hi:    binary.LittleEndian.Uint32(b[4:8]),
		Lo:    binary.LittleEndian.Uint32(b[8:12]),
		Mid:   binary.LittleEndian.Uint32(b[12:16]),
	}, nil
}

func truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return model.WrapError(model.StreamTruncated, "unexpected end of stream", err)
	}
	return model.WrapError(model.StreamTruncated, "read failed", err)
}

// Writer encodes primitives onto an underlying byte stream.
type Writer struct {
	w            *bufio.Writer
	bytesWritten int64
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) BytesWritten() int64 { return w.bytesWritten }

func (w *Writer) Flush() error { return w.w.Flush() }

func (w *Writer) WriteByte(b byte) error {
	if err := w.w.WriteByte(b); err != nil {
		return err
	}
	w.bytesWritten++
	return nil
}

func (w *Writer) WriteBytes(b []byte) error {
	n, err := w.w.Write(b)
	w.bytesWritten += int64(n)
	return err
}

func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

func (w *Writer) WriteUvarint(v uint64) error {
	for v >= 0x80 {
		if err := w.WriteByte(byte(v) | 0x80); err != nil {
			return err
		}
		v >>= 7
	}
	return w.WriteByte(byte(v))
}

func (w *Writer) WriteVarint(v int64) error {
	u := uint64(v<<1) ^ uint64(v>>63)
	return w.WriteUvarint(u)
}

func (w *Writer) WriteFloat32(v float32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	return w.WriteBytes(buf[:])
}

func (w *Writer) WriteFloat64(v float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return w.WriteBytes(buf[:])
}

func (w *Writer) WriteNullString() error { return w.WriteVarint(-1) }

func (w *Writer) WriteString(s string) error {
	if err := w.WriteVarint(int64(len(s))); err != nil {
		return err
	}
	return w.WriteBytes([]byte(s))
}

func (w *Writer) WriteNullByteSlice() error { return w.WriteVarint(-1) }

func (w *Writer) WriteByteSlice(b []byte) error {
	if err := w.WriteVarint(int64(len(b))); err != nil {
		return err
	}
	return w.WriteBytes(b)
}

func (w *Writer) WriteDateTime(ticks int64, kind model.DateTimeKind) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(ticks))
	if err := w.WriteBytes(buf[:]); err != nil {
		return err
	}
	return w.WriteByte(byte(kind))
}

func (w *Writer) WriteDecimal(d model.Decimal) error {
	var buf [16]byte
	binary.LittleEndian.PutUint32(buf[0:4], d.Flags)
	binary.LittleEndian.PutUint32(buf[4:8], d.Hi)
	binary.LittleEndian.PutUint32(buf[8:12], d.Lo)
	binary.LittleEndian.PutUint32(buf[12:16], d.Mid)
	return w.WriteBytes(buf[:])
}
