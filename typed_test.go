package goads

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeValueRoundTrip(t *testing.T) {
	t.Run("int32", func(t *testing.T) {
		data, err := encodeValue(int32(-42))
		if err != nil {
			t.Fatalf("encodeValue() error = %v", err)
		}
		if len(data) != 4 {
			t.Fatalf("encodeValue() len = %d, want 4", len(data))
		}
		got, err := decodeValue[int32](data)
		if err != nil {
			t.Fatalf("decodeValue() error = %v", err)
		}
		if got != -42 {
			t.Errorf("decodeValue() = %d, want -42", got)
		}
	})

	t.Run("uint16", func(t *testing.T) {
		data, err := encodeValue(uint16(0xBEEF))
		if err != nil {
			t.Fatalf("encodeValue() error = %v", err)
		}
		// little-endian: low byte first
		if data[0] != 0xEF || data[1] != 0xBE {
			t.Errorf("encodeValue() = %x, want little-endian BEEF", data)
		}
		got, err := decodeValue[uint16](data)
		if err != nil {
			t.Fatalf("decodeValue() error = %v", err)
		}
		if got != 0xBEEF {
			t.Errorf("decodeValue() = %x, want BEEF", got)
		}
	})

	t.Run("bool true", func(t *testing.T) {
		data, err := encodeValue(true)
		if err != nil {
			t.Fatalf("encodeValue() error = %v", err)
		}
		got, err := decodeValue[bool](data)
		if err != nil {
			t.Fatalf("decodeValue() error = %v", err)
		}
		if !got {
			t.Error("decodeValue() = false, want true")
		}
	})

	t.Run("float64", func(t *testing.T) {
		data, err := encodeValue(float64(3.14159))
		if err != nil {
			t.Fatalf("encodeValue() error = %v", err)
		}
		got, err := decodeValue[float64](data)
		if err != nil {
			t.Fatalf("decodeValue() error = %v", err)
		}
		if got != 3.14159 {
			t.Errorf("decodeValue() = %v, want 3.14159", got)
		}
	})
}

func TestDecodeValueTruncatedData(t *testing.T) {
	// int32 needs 4 bytes; only 2 are available.
	_, err := decodeValue[int32]([]byte{0x01, 0x02})
	if err == nil {
		t.Error("decodeValue() with truncated data expected an error, got nil")
	}
}

func TestEncodeDecodeArrayRoundTrip(t *testing.T) {
	values := []int16{1, -2, 3, -4, 32767, -32768}

	data, err := encodeArray(values)
	if err != nil {
		t.Fatalf("encodeArray() error = %v", err)
	}
	if len(data) != len(values)*2 {
		t.Fatalf("encodeArray() len = %d, want %d", len(data), len(values)*2)
	}

	got, err := decodeArray[int16](data)
	if err != nil {
		t.Fatalf("decodeArray() error = %v", err)
	}
	if !reflect.DeepEqual(got, values) {
		t.Errorf("decodeArray() = %v, want %v", got, values)
	}
}

func TestDecodeArrayEmpty(t *testing.T) {
	got, err := decodeArray[uint32](nil)
	if err != nil {
		t.Fatalf("decodeArray() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("decodeArray() = %v, want empty", got)
	}
}

func TestDecodeArrayDropsTrailingPartialElement(t *testing.T) {
	// Two full uint32 elements plus two stray bytes that don't make a third.
	data := make([]byte, 0, 10)
	full, err := encodeArray([]uint32{1, 2})
	if err != nil {
		t.Fatalf("encodeArray() error = %v", err)
	}
	data = append(data, full...)
	data = append(data, 0xAA, 0xBB)

	got, err := decodeArray[uint32](data)
	if err != nil {
		t.Fatalf("decodeArray() error = %v", err)
	}
	if !reflect.DeepEqual(got, []uint32{1, 2}) {
		t.Errorf("decodeArray() = %v, want [1 2]", got)
	}
}
