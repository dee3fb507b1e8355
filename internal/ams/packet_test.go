package ams

import (
	"bytes"
	"errors"
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	target := NetID{192, 168, 1, 100, 1, 1}
	source := NetID{10, 10, 0, 10, 1, 1}

	cases := []struct {
		name      string
		commandID uint16
		invokeID  uint32
		data      []byte
	}{
		{"empty payload", 4, 1, nil},
		{"read payload", 2, 42, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}},
		{"near cap", 2, 0x3FFFFFFF, bytes.Repeat([]byte{0xAB}, MaxFrameLength-32)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := NewRequestPacket(target, 851, source, 32905, tc.commandID, tc.invokeID, tc.data)
			buf, err := req.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary: %v", err)
			}
			if len(buf) != 6+32+len(tc.data) {
				t.Fatalf("frame length = %d, want %d", len(buf), 6+32+len(tc.data))
			}

			got, err := ReadPacket(bytes.NewReader(buf))
			if err != nil {
				t.Fatalf("ReadPacket: %v", err)
			}
			if got.Header.CommandID != tc.commandID {
				t.Errorf("CommandID = %d, want %d", got.Header.CommandID, tc.commandID)
			}
			if got.Header.InvokeID != tc.invokeID {
				t.Errorf("InvokeID = %d, want %d", got.Header.InvokeID, tc.invokeID)
			}
			if !bytes.Equal(got.Data, tc.data) {
				t.Errorf("Data = %v, want %v", got.Data, tc.data)
			}
		})
	}
}

func TestReadPacketRejectsOversizedFrame(t *testing.T) {
	target := NetID{1, 2, 3, 4, 5, 6}
	data := bytes.Repeat([]byte{0x01}, MaxFrameLength)
	req := NewRequestPacket(target, 851, target, 851, 2, 1, data)
	buf, err := req.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	_, err = ReadPacket(bytes.NewReader(buf))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("ReadPacket error = %v, want ErrFrameTooLarge", err)
	}
}

func TestReadPacketRejectsNonZeroReserved(t *testing.T) {
	buf := make([]byte, 6+32)
	buf[0] = 0x01 // reserved != 0
	_, err := ReadPacket(bytes.NewReader(buf))
	if !errors.Is(err, ErrReservedNonZero) {
		t.Fatalf("ReadPacket error = %v, want ErrReservedNonZero", err)
	}
}

func TestReadPacketShortRead(t *testing.T) {
	_, err := ReadPacket(bytes.NewReader([]byte{1, 2, 3}))
	if err == nil {
		t.Fatal("expected error on short read")
	}
}
