package goads

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// Primitive constrains the type parameter accepted by the generic
// ReadValue/WriteValue/ReadArray/WriteArray helpers to fixed-size kinds that
// encoding/binary can serialize directly.
type Primitive interface {
	~bool |
		~int8 | ~uint8 |
		~int16 | ~uint16 |
		~int32 | ~uint32 |
		~int64 | ~uint64 |
		~float32 | ~float64
}

// decodeValue decodes the little-endian encoding of a single T from data.
func decodeValue[T Primitive](data []byte) (T, error) {
	var value T
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &value); err != nil {
		return value, err
	}
	return value, nil
}

// encodeValue little-endian encodes a single T.
func encodeValue[T Primitive](value T) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeArray decodes data as a contiguous sequence of little-endian T
// values, one element per sizeof(T) bytes. A trailing partial element is
// silently dropped rather than treated as an error, since symbol buffers
// are sized in whole elements by the PLC compiler.
func decodeArray[T Primitive](data []byte) ([]T, error) {
	reader := bytes.NewReader(data)
	var result []T
	for reader.Len() > 0 {
		var v T
		if err := binary.Read(reader, binary.LittleEndian, &v); err != nil {
			if err == io.ErrUnexpectedEOF {
				break
			}
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

// encodeArray little-endian encodes values as one contiguous buffer.
func encodeArray[T Primitive](values []T) ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range values {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// ReadValue reads a symbol's raw bytes and decodes them as T. It is a
// generic counterpart to the named ReadBool/ReadInt32/... helpers in
// client_types.go, for callers that already know T at compile time and want
// one call site instead of picking a method by hand.
func ReadValue[T Primitive](ctx context.Context, c *Client, symbolName string) (T, error) {
	data, err := c.ReadSymbol(ctx, symbolName)
	if err != nil {
		var zero T
		return zero, err
	}

	value, err := decodeValue[T](data)
	if err != nil {
		return value, fmt.Errorf("decode value for %q: %w", symbolName, err)
	}
	return value, nil
}

// WriteValue encodes value as little-endian bytes and writes it to a symbol
// by name.
func WriteValue[T Primitive](ctx context.Context, c *Client, symbolName string, value T) error {
	data, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", symbolName, err)
	}
	return c.WriteSymbol(ctx, symbolName, data)
}

// ReadArray reads a symbol's raw bytes and decodes them as a slice of T,
// one element per sizeof(T) bytes in the symbol's buffer.
func ReadArray[T Primitive](ctx context.Context, c *Client, symbolName string) ([]T, error) {
	data, err := c.ReadSymbol(ctx, symbolName)
	if err != nil {
		return nil, err
	}

	result, err := decodeArray[T](data)
	if err != nil {
		return nil, fmt.Errorf("decode array element for %q: %w", symbolName, err)
	}
	return result, nil
}

// WriteArray encodes values as a contiguous little-endian buffer and writes
// it to a symbol by name.
func WriteArray[T Primitive](ctx context.Context, c *Client, symbolName string, values []T) error {
	data, err := encodeArray(values)
	if err != nil {
		return fmt.Errorf("encode array element for %q: %w", symbolName, err)
	}
	return c.WriteSymbol(ctx, symbolName, data)
}
