package ads

import (
	"encoding/binary"
	"fmt"
)

// TransmissionMode selects how the controller schedules notification delivery.
type TransmissionMode uint32

const (
	// TransmissionModeCyclic delivers a sample every CycleTime, regardless of change.
	TransmissionModeCyclic TransmissionMode = 3
	// TransmissionModeOnChange delivers a sample only when the value changes,
	// at most once per CycleTime, with a forced delivery after MaxDelay.
	TransmissionModeOnChange TransmissionMode = 4
)

// AddDeviceNotificationRequest registers a notification for a memory region
// identified by index group/offset/length.
type AddDeviceNotificationRequest struct {
	IndexGroup  uint32
	IndexOffset uint32
	Length      uint32
	Mode        TransmissionMode
	MaxDelay    uint32 // 100ns units
	CycleTime   uint32 // 100ns units
}

// MarshalBinary encodes the request: group, offset, length, mode, maxDelay,
// cycleTime, followed by 16 reserved bytes.
func (r *AddDeviceNotificationRequest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 40)
	binary.LittleEndian.PutUint32(buf[0:4], r.IndexGroup)
	binary.LittleEndian.PutUint32(buf[4:8], r.IndexOffset)
	binary.LittleEndian.PutUint32(buf[8:12], r.Length)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(r.Mode))
	binary.LittleEndian.PutUint32(buf[16:20], r.MaxDelay)
	binary.LittleEndian.PutUint32(buf[20:24], r.CycleTime)
	// buf[24:40] reserved, left zero
	return buf, nil
}

// AddDeviceNotificationResponse carries the result and, on success, the
// notification handle to be used with DeleteDeviceNotificationRequest.
type AddDeviceNotificationResponse struct {
	Result             uint32
	NotificationHandle uint32
}

func (r *AddDeviceNotificationResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("ads: add device notification response requires 8 bytes, got %d", len(data))
	}
	r.Result = binary.LittleEndian.Uint32(data[0:4])
	r.NotificationHandle = binary.LittleEndian.Uint32(data[4:8])
	return nil
}

// DeleteDeviceNotificationRequest releases a previously registered notification.
type DeleteDeviceNotificationRequest struct {
	NotificationHandle uint32
}

func (r *DeleteDeviceNotificationRequest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf[0:4], r.NotificationHandle)
	return buf, nil
}

// DeleteDeviceNotificationResponse carries the result of the delete.
type DeleteDeviceNotificationResponse struct {
	Result uint32
}

func (r *DeleteDeviceNotificationResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("ads: delete device notification response requires 4 bytes, got %d", len(data))
	}
	r.Result = binary.LittleEndian.Uint32(data[0:4])
	return nil
}

// NotificationSample is one delivered value within a stamp.
type NotificationSample struct {
	Handle uint32
	Size   uint32
	Data   []byte
}

// NotificationStamp groups samples that were all captured at the same instant.
type NotificationStamp struct {
	Timestamp uint64 // Windows FILETIME: 100ns intervals since 1601-01-01
	Samples   []NotificationSample
}

// DeviceNotificationRequest is the spontaneous DEVICE_NOTIFICATION payload:
// length u32, stampCount u32, then per stamp: timestamp u64, sampleCount u32,
// then per sample: handle u32, size u32, data.
//
// Every length field is validated against the remaining buffer before it is
// read; a truncated or inconsistent frame yields an error and whatever
// stamps were successfully parsed before the truncation are discarded by
// the caller, never partially delivered.
type DeviceNotificationRequest struct {
	Length  uint32
	Stamps  []NotificationStamp
}

func (n *DeviceNotificationRequest) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("ads: device notification requires at least 8 bytes, got %d", len(data))
	}
	n.Length = binary.LittleEndian.Uint32(data[0:4])
	stampCount := binary.LittleEndian.Uint32(data[4:8])

	off := 8
	stamps := make([]NotificationStamp, 0, stampCount)
	for i := uint32(0); i < stampCount; i++ {
		if len(data)-off < 12 {
			return fmt.Errorf("ads: device notification stamp %d header truncated", i)
		}
		ts := binary.LittleEndian.Uint64(data[off : off+8])
		sampleCount := binary.LittleEndian.Uint32(data[off+8 : off+12])
		off += 12

		samples := make([]NotificationSample, 0, sampleCount)
		for j := uint32(0); j < sampleCount; j++ {
			if len(data)-off < 8 {
				return fmt.Errorf("ads: device notification stamp %d sample %d header truncated", i, j)
			}
			handle := binary.LittleEndian.Uint32(data[off : off+4])
			size := binary.LittleEndian.Uint32(data[off+4 : off+8])
			off += 8
			if uint32(len(data)-off) < size {
				return fmt.Errorf("ads: device notification stamp %d sample %d data truncated: want %d, have %d", i, j, size, len(data)-off)
			}
			sampleData := make([]byte, size)
			copy(sampleData, data[off:off+int(size)])
			off += int(size)
			samples = append(samples, NotificationSample{Handle: handle, Size: size, Data: sampleData})
		}
		stamps = append(stamps, NotificationStamp{Timestamp: ts, Samples: samples})
	}

	n.Stamps = stamps
	return nil
}
