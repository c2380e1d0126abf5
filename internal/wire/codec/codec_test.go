package codec

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/mabhi256/objwire/internal/wire/model"
)

func TestVarintRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 63, 64, -64, -65, math.MaxInt32, math.MinInt32, math.MaxInt64, math.MinInt64}

	for _, v := range cases {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := w.WriteVarint(v); err != nil {
			t.Fatalf("write %d: %v", v, err)
		}
		if err := w.Flush(); err != nil {
			t.Fatalf("flush: %v", err)
		}

		r := NewReader(&buf)
		got, err := r.ReadVarint()
		if err != nil {
			t.Fatalf("read %d: %v", v, err)
		}
		if got != v {
			t.Errorf("varint round-trip: want %d, got %d", v, got)
		}
	}
}

func TestUvarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 16384, math.MaxUint32, math.MaxUint64}

	for _, v := range cases {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		w.WriteUvarint(v)
		w.Flush()

		r := NewReader(&buf)
		got, err := r.ReadUvarint()
		if err != nil {
			t.Fatalf("read %d: %v", v, err)
		}
		if got != v {
			t.Errorf("uvarint round-trip: want %d, got %d", v, got)
		}
	}
}

func TestUvarintOverflow(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 11; i++ {
		buf.WriteByte(0xff)
	}
	buf.WriteByte(0x01)

	r := NewReader(&buf)
	_, err := r.ReadUvarint()
	if err == nil {
		t.Fatal("expected overflow error")
	}
	var wireErr *model.Error
	if !errors.As(err, &wireErr) || wireErr.Kind != model.StreamCorrupted {
		t.Errorf("want StreamCorrupted, got %v", err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	cases := []string{"", "hello", "unicode: éè中文"}

	for _, s := range cases {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		w.WriteString(s)
		w.Flush()

		r := NewReader(&buf)
		got, isNull, err := r.ReadString()
		if err != nil {
			t.Fatalf("read %q: %v", s, err)
		}
		if isNull {
			t.Fatalf("unexpected null for %q", s)
		}
		if got != s {
			t.Errorf("string round-trip: want %q, got %q", s, got)
		}
	}
}

func TestNullString(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteNullString()
	w.Flush()

	r := NewReader(&buf)
	_, isNull, err := r.ReadString()
	if err != nil {
		t.Fatal(err)
	}
	if !isNull {
		t.Error("expected null string")
	}
}

func TestFloatRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteFloat32(3.14)
	w.WriteFloat64(2.71828182845)
	w.Flush()

	r := NewReader(&buf)
	f32, err := r.ReadFloat32()
	if err != nil || f32 != 3.14 {
		t.Errorf("float32 round-trip: got %v, %v", f32, err)
	}
	f64, err := r.ReadFloat64()
	if err != nil || f64 != 2.71828182845 {
		t.Errorf("float64 round-trip: got %v, %v", f64, err)
	}
}

func TestBoolRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBool(true)
	w.WriteBool(false)
	w.Flush()

	r := NewReader(&buf)
	a, _ := r.ReadBool()
	b, _ := r.ReadBool()
	if !a || b {
		t.Errorf("bool round-trip failed: %v %v", a, b)
	}
}

func TestTruncatedStream(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x80}) // continuation bit set, then nothing
	r := NewReader(buf)
	_, err := r.ReadUvarint()
	if err == nil {
		t.Fatal("expected truncation error")
	}
	var wireErr *model.Error
	if !errors.As(err, &wireErr) || wireErr.Kind != model.StreamTruncated {
		t.Errorf("want StreamTruncated, got %v", err)
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	d := model.Decimal{Flags: 0x80020000, Hi: 0, Mid: 1, Lo: 500}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteDecimal(d)
	w.Flush()

	r := NewReader(&buf)
	got, err := r.ReadDecimal()
	if err != nil {
		t.Fatal(err)
	}
	if got != d {
		t.Errorf("decimal round-trip: want %+v, got %+v", d, got)
	}
	if !got.Negative() || got.Scale() != 2 {
		t.Errorf("decimal flags decode: negative=%v scale=%d", got.Negative(), got.Scale())
	}
}

