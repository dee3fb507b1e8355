package goads

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/twincatio/goads/internal/symbols"
)

func TestParseArrayAccess(t *testing.T) {
	tests := []struct {
		name        string
		symbolName  string
		wantBase    string
		wantIndices []int
		wantErr     bool
	}{
		{"no brackets", "MAIN.counter", "MAIN.counter", nil, false},
		{"single index", "MAIN.buffer[3]", "MAIN.buffer", []int{3}, false},
		{"multi-dim index", "MAIN.grid[1,2]", "MAIN.grid", []int{1, 2}, false},
		{"spaced indices", "MAIN.grid[ 1 , 2 ]", "MAIN.grid", []int{1, 2}, false},
		{"negative index", "MAIN.buffer[-1]", "MAIN.buffer", []int{-1}, false},
		{"empty brackets", "MAIN.buffer[]", "", nil, true},
		{"non-numeric index", "MAIN.buffer[x]", "", nil, true},
		{"trailing garbage", "MAIN.buffer[3]x", "", nil, true},
		{"unmatched bracket", "MAIN.buffer[3", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, indices, err := parseArrayAccess(tt.symbolName)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseArrayAccess(%q) expected error, got nil", tt.symbolName)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseArrayAccess(%q) unexpected error: %v", tt.symbolName, err)
			}
			if base != tt.wantBase {
				t.Errorf("base = %q, want %q", base, tt.wantBase)
			}
			if len(indices) != len(tt.wantIndices) {
				t.Fatalf("indices = %v, want %v", indices, tt.wantIndices)
			}
			for i := range indices {
				if indices[i] != tt.wantIndices[i] {
					t.Errorf("indices[%d] = %d, want %d", i, indices[i], tt.wantIndices[i])
				}
			}
		})
	}
}

func TestExtractArrayElementType(t *testing.T) {
	tests := []struct {
		typeName        string
		wantElementType string
		wantIsArray     bool
	}{
		{"ARRAY [0..9] OF INT", "INT", true},
		{"array [0..9] of dint", "dint", true},
		{"ARRAY [0..9,0..9] OF ST_Sample", "ST_Sample", true},
		{"INT", "", false},
		{"ST_Sample", "", false},
		{"ARRAY [0..9]", "", false}, // no " OF " clause
	}

	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			elementType, isArray := extractArrayElementType(tt.typeName)
			if isArray != tt.wantIsArray {
				t.Fatalf("isArray = %v, want %v", isArray, tt.wantIsArray)
			}
			if elementType != tt.wantElementType {
				t.Errorf("elementType = %q, want %q", elementType, tt.wantElementType)
			}
		})
	}
}

// buildSymbolEntry constructs a single raw ADS symbol-upload entry, matching
// the wire layout internal/symbols.parseSymbolEntry expects.
func buildSymbolEntry(name, typeName string, dataTypeID, indexGroup, indexOffset, size uint32) []byte {
	nameBytes := append([]byte(name), 0)
	typeBytes := append([]byte(typeName), 0)
	commentBytes := []byte{0}

	entryLength := 30 + len(nameBytes) + len(typeBytes) + len(commentBytes)
	entry := make([]byte, entryLength)

	binary.LittleEndian.PutUint32(entry[0:4], uint32(entryLength))
	binary.LittleEndian.PutUint32(entry[4:8], indexGroup)
	binary.LittleEndian.PutUint32(entry[8:12], indexOffset)
	binary.LittleEndian.PutUint32(entry[12:16], size)
	binary.LittleEndian.PutUint32(entry[16:20], dataTypeID)
	// entry[20:24] flags left zero
	binary.LittleEndian.PutUint16(entry[24:26], uint16(len(name)))
	binary.LittleEndian.PutUint16(entry[26:28], uint16(len(typeName)))
	binary.LittleEndian.PutUint16(entry[28:30], 0)

	offset := 30
	copy(entry[offset:], nameBytes)
	offset += len(nameBytes)
	copy(entry[offset:], typeBytes)
	offset += len(typeBytes)
	copy(entry[offset:], commentBytes)

	return entry
}

func newTestClientWithSymbols(t *testing.T, entries ...[]byte) *Client {
	t.Helper()

	var data []byte
	for _, e := range entries {
		data = append(data, e...)
	}

	table := symbols.NewTable()
	if err := table.Load(data); err != nil {
		t.Fatalf("load symbol table: %v", err)
	}

	return &Client{symbolTable: table}
}

func TestResolveArraySymbolPlain(t *testing.T) {
	c := newTestClientWithSymbols(t,
		buildSymbolEntry("MAIN.counter", "DINT", uint32(symbols.DataTypeInt32), 0x4020, 100, 4),
	)

	indexGroup, indexOffset, size, err := c.resolveArraySymbol(context.Background(), "MAIN.counter")
	if err != nil {
		t.Fatalf("resolveArraySymbol() error = %v", err)
	}
	if indexGroup != 0x4020 || indexOffset != 100 || size != 4 {
		t.Errorf("resolveArraySymbol() = (%x, %d, %d), want (4020, 100, 4)", indexGroup, indexOffset, size)
	}
}

func TestResolveArraySymbolElement(t *testing.T) {
	// ARRAY [0..3] OF INT: 4 elements * 2 bytes = 8 bytes total.
	c := newTestClientWithSymbols(t,
		buildSymbolEntry("MAIN.buffer", "ARRAY [0..3] OF INT", uint32(symbols.DataTypeInt16), 0x4020, 200, 8),
	)

	indexGroup, indexOffset, size, err := c.resolveArraySymbol(context.Background(), "MAIN.buffer[2]")
	if err != nil {
		t.Fatalf("resolveArraySymbol() error = %v", err)
	}
	if indexGroup != 0x4020 {
		t.Errorf("indexGroup = %x, want 4020", indexGroup)
	}
	if size != 2 {
		t.Errorf("size = %d, want 2", size)
	}
	// Element 2 of a 2-byte-wide array starting at offset 200 -> 200 + 2*2.
	if indexOffset != 204 {
		t.Errorf("indexOffset = %d, want 204", indexOffset)
	}
}

func TestResolveArraySymbolOutOfBounds(t *testing.T) {
	c := newTestClientWithSymbols(t,
		buildSymbolEntry("MAIN.buffer", "ARRAY [0..3] OF INT", uint32(symbols.DataTypeInt16), 0x4020, 200, 8),
	)

	if _, _, _, err := c.resolveArraySymbol(context.Background(), "MAIN.buffer[4]"); err == nil {
		t.Error("resolveArraySymbol() with out-of-bounds index expected error, got nil")
	}
}

func TestResolveArraySymbolNotAnArray(t *testing.T) {
	c := newTestClientWithSymbols(t,
		buildSymbolEntry("MAIN.counter", "DINT", uint32(symbols.DataTypeInt32), 0x4020, 100, 4),
	)

	if _, _, _, err := c.resolveArraySymbol(context.Background(), "MAIN.counter[0]"); err == nil {
		t.Error("resolveArraySymbol() on a non-array symbol expected error, got nil")
	}
}

func TestResolveArraySymbolUnknownSymbol(t *testing.T) {
	c := newTestClientWithSymbols(t,
		buildSymbolEntry("MAIN.counter", "DINT", uint32(symbols.DataTypeInt32), 0x4020, 100, 4),
	)

	if _, _, _, err := c.resolveArraySymbol(context.Background(), "MAIN.missing"); err == nil {
		t.Error("resolveArraySymbol() on an unknown symbol expected error, got nil")
	}
}
