package ads

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestAddDeviceNotificationRequestMarshal(t *testing.T) {
	req := AddDeviceNotificationRequest{
		IndexGroup:  0x4020,
		IndexOffset: 100,
		Length:      4,
		Mode:        TransmissionModeOnChange,
		MaxDelay:    2_000_000,
		CycleTime:   1_000_000,
	}

	data, err := req.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	if len(data) != 40 {
		t.Fatalf("MarshalBinary() len = %d, want 40", len(data))
	}
	if got := binary.LittleEndian.Uint32(data[0:4]); got != 0x4020 {
		t.Errorf("IndexGroup = %x, want 4020", got)
	}
	if got := binary.LittleEndian.Uint32(data[12:16]); got != uint32(TransmissionModeOnChange) {
		t.Errorf("Mode = %d, want %d", got, TransmissionModeOnChange)
	}
	if !bytes.Equal(data[24:40], make([]byte, 16)) {
		t.Error("reserved tail bytes are not zero")
	}
}

func TestAddDeviceNotificationResponseUnmarshal(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:4], 0)
	binary.LittleEndian.PutUint32(data[4:8], 42)

	var resp AddDeviceNotificationResponse
	if err := resp.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if resp.Result != 0 || resp.NotificationHandle != 42 {
		t.Errorf("got (result=%d, handle=%d), want (0, 42)", resp.Result, resp.NotificationHandle)
	}

	if err := (&AddDeviceNotificationResponse{}).UnmarshalBinary(data[:4]); err == nil {
		t.Error("UnmarshalBinary() with short buffer expected error, got nil")
	}
}

func TestDeleteDeviceNotificationRequestMarshal(t *testing.T) {
	req := DeleteDeviceNotificationRequest{NotificationHandle: 7}
	data, err := req.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	if len(data) != 4 {
		t.Fatalf("MarshalBinary() len = %d, want 4", len(data))
	}
	if got := binary.LittleEndian.Uint32(data); got != 7 {
		t.Errorf("NotificationHandle = %d, want 7", got)
	}
}

func TestDeleteDeviceNotificationResponseUnmarshal(t *testing.T) {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, 0)

	var resp DeleteDeviceNotificationResponse
	if err := resp.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if resp.Result != 0 {
		t.Errorf("Result = %d, want 0", resp.Result)
	}

	if err := (&DeleteDeviceNotificationResponse{}).UnmarshalBinary(nil); err == nil {
		t.Error("UnmarshalBinary() with empty buffer expected error, got nil")
	}
}

// buildNotification constructs a raw DEVICE_NOTIFICATION payload with one
// stamp carrying the given samples.
func buildNotification(timestamp uint64, samples [][]byte, handles []uint32) []byte {
	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, timestamp)
	binary.Write(&body, binary.LittleEndian, uint32(len(samples)))
	for i, s := range samples {
		binary.Write(&body, binary.LittleEndian, handles[i])
		binary.Write(&body, binary.LittleEndian, uint32(len(s)))
		body.Write(s)
	}

	var full bytes.Buffer
	binary.Write(&full, binary.LittleEndian, uint32(body.Len()))
	binary.Write(&full, binary.LittleEndian, uint32(1)) // stampCount
	full.Write(body.Bytes())
	return full.Bytes()
}

func TestDeviceNotificationRequestUnmarshal(t *testing.T) {
	data := buildNotification(132223104000000000, [][]byte{{0xAA, 0xBB, 0xCC, 0xDD}}, []uint32{5})

	var n DeviceNotificationRequest
	if err := n.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if len(n.Stamps) != 1 {
		t.Fatalf("Stamps = %d, want 1", len(n.Stamps))
	}
	stamp := n.Stamps[0]
	if stamp.Timestamp != 132223104000000000 {
		t.Errorf("Timestamp = %d, want 132223104000000000", stamp.Timestamp)
	}
	if len(stamp.Samples) != 1 {
		t.Fatalf("Samples = %d, want 1", len(stamp.Samples))
	}
	sample := stamp.Samples[0]
	if sample.Handle != 5 {
		t.Errorf("Handle = %d, want 5", sample.Handle)
	}
	if !bytes.Equal(sample.Data, []byte{0xAA, 0xBB, 0xCC, 0xDD}) {
		t.Errorf("Data = %x, want aabbccdd", sample.Data)
	}
}

func TestDeviceNotificationRequestMultipleSamples(t *testing.T) {
	data := buildNotification(0, [][]byte{{0x01}, {0x02, 0x03}}, []uint32{1, 2})

	var n DeviceNotificationRequest
	if err := n.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if len(n.Stamps[0].Samples) != 2 {
		t.Fatalf("Samples = %d, want 2", len(n.Stamps[0].Samples))
	}
}

func TestDeviceNotificationRequestTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"header only", []byte{12, 0, 0, 0, 1, 0, 0, 0}}, // declares one stamp, carries none
		{"stamp header truncated", append([]byte{20, 0, 0, 0, 1, 0, 0, 0}, make([]byte, 4)...)},
		{"sample header truncated", func() []byte {
			var body bytes.Buffer
			binary.Write(&body, binary.LittleEndian, uint64(0))
			binary.Write(&body, binary.LittleEndian, uint32(1))
			body.Write([]byte{1, 2})
			var full bytes.Buffer
			binary.Write(&full, binary.LittleEndian, uint32(body.Len()))
			binary.Write(&full, binary.LittleEndian, uint32(1))
			full.Write(body.Bytes())
			return full.Bytes()
		}()},
		{"sample data truncated", func() []byte {
			var body bytes.Buffer
			binary.Write(&body, binary.LittleEndian, uint64(0))
			binary.Write(&body, binary.LittleEndian, uint32(1))
			binary.Write(&body, binary.LittleEndian, uint32(1))  // handle
			binary.Write(&body, binary.LittleEndian, uint32(10)) // size, but no data follows
			var full bytes.Buffer
			binary.Write(&full, binary.LittleEndian, uint32(body.Len()))
			binary.Write(&full, binary.LittleEndian, uint32(1))
			full.Write(body.Bytes())
			return full.Bytes()
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n DeviceNotificationRequest
			if err := n.UnmarshalBinary(tt.data); err == nil {
				t.Error("UnmarshalBinary() expected error, got nil")
			}
		})
	}
}
