package ads

import (
	"encoding/binary"
	"testing"
)

func TestGetSymbolHandleByNameRequestMarshal(t *testing.T) {
	req := GetSymbolHandleByNameRequest{SymbolName: "MAIN.counter"}
	data, err := req.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	want := append([]byte("MAIN.counter"), 0)
	if string(data) != string(want) {
		t.Errorf("MarshalBinary() = %q, want %q", data, want)
	}
}

func TestGetSymbolHandleByNameResponseUnmarshal(t *testing.T) {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, 0x12345678)

	var resp GetSymbolHandleByNameResponse
	if err := resp.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if resp.Handle != 0x12345678 {
		t.Errorf("Handle = %x, want 12345678", resp.Handle)
	}

	if err := (&GetSymbolHandleByNameResponse{}).UnmarshalBinary(data[:2]); err == nil {
		t.Error("UnmarshalBinary() with short buffer expected error, got nil")
	}
}

func TestSymbolUploadInfoResponseUnmarshal(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:4], 120)
	binary.LittleEndian.PutUint32(data[4:8], 9000)

	var resp SymbolUploadInfoResponse
	if err := resp.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if resp.SymbolCount != 120 || resp.SymbolLength != 9000 {
		t.Errorf("got (%d, %d), want (120, 9000)", resp.SymbolCount, resp.SymbolLength)
	}

	if err := (&SymbolUploadInfoResponse{}).UnmarshalBinary(data[:4]); err == nil {
		t.Error("UnmarshalBinary() with short buffer expected error, got nil")
	}
}

func TestDataTypeUploadInfoResponseUnmarshal(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:4], 30)
	binary.LittleEndian.PutUint32(data[4:8], 4500)

	var resp DataTypeUploadInfoResponse
	if err := resp.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if resp.DataTypeCount != 30 || resp.DataTypeSize != 4500 {
		t.Errorf("got (%d, %d), want (30, 4500)", resp.DataTypeCount, resp.DataTypeSize)
	}

	if err := (&DataTypeUploadInfoResponse{}).UnmarshalBinary(nil); err == nil {
		t.Error("UnmarshalBinary() with empty buffer expected error, got nil")
	}
}

func TestSymbolUploadResponseCopiesData(t *testing.T) {
	original := []byte{1, 2, 3, 4}
	var resp SymbolUploadResponse
	if err := resp.UnmarshalBinary(original); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}

	// Mutating the source slice must not affect the stored copy.
	original[0] = 0xFF
	if resp.Data[0] != 1 {
		t.Errorf("SymbolUploadResponse.Data aliases its input; got %v, want first byte 1", resp.Data)
	}
}

func TestReleaseSymbolHandleRequestMarshal(t *testing.T) {
	req := ReleaseSymbolHandleRequest{Handle: 99}
	data, err := req.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	if got := binary.LittleEndian.Uint32(data); got != 99 {
		t.Errorf("Handle = %d, want 99", got)
	}
}

func TestIndexGroupConstants(t *testing.T) {
	// These must match the published ADS index-group table exactly; a
	// regression here silently breaks every symbol read/write.
	tests := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"SymbolHandleByName", IndexGroupSymbolHandleByName, 0xF003},
		{"SymbolValueByName", IndexGroupSymbolValueByName, 0xF004},
		{"SymbolValueByHandle", IndexGroupSymbolValueByHandle, 0xF005},
		{"ReleaseSymbolHandle", IndexGroupReleaseSymbolHandle, 0xF006},
		{"SymbolUpload", IndexGroupSymbolUpload, 0xF00B},
		{"SymbolUploadInfo", IndexGroupSymbolUploadInfo, 0xF00C},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %x, want %x", tt.name, tt.got, tt.want)
		}
	}
}
