package goads

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// parseArrayAccess splits a symbol path that may carry bracketed array
// indices (e.g. "MAIN.buffer[3]" or "MAIN.grid[1,2]") into the bare symbol
// name and the requested indices. A path with no brackets returns a nil
// index slice.
func parseArrayAccess(symbolName string) (baseName string, arrayIndices []int, err error) {
	open := strings.IndexByte(symbolName, '[')
	if open < 0 {
		return symbolName, nil, nil
	}

	close := strings.LastIndexByte(symbolName, ']')
	if close < open {
		return "", nil, fmt.Errorf("malformed array access in %q", symbolName)
	}
	if close != len(symbolName)-1 {
		return "", nil, fmt.Errorf("unexpected characters after ']' in %q", symbolName)
	}

	baseName = symbolName[:open]
	indexPart := symbolName[open+1 : close]
	if indexPart == "" {
		return "", nil, fmt.Errorf("empty array index in %q", symbolName)
	}

	for _, field := range strings.Split(indexPart, ",") {
		field = strings.TrimSpace(field)
		idx, convErr := strconv.Atoi(field)
		if convErr != nil {
			return "", nil, fmt.Errorf("invalid array index %q in %q: %w", field, symbolName, convErr)
		}
		arrayIndices = append(arrayIndices, idx)
	}

	return baseName, arrayIndices, nil
}

// extractArrayElementType parses a TwinCAT array type declaration such as
// "ARRAY [0..9] OF INT" or "ARRAY [0..9,0..9] OF ST_Sample" and returns the
// element type name. isArray reports whether typeName denoted an array at
// all.
func extractArrayElementType(typeName string) (elementType string, isArray bool) {
	upper := strings.ToUpper(strings.TrimSpace(typeName))
	if !strings.HasPrefix(upper, "ARRAY") {
		return "", false
	}

	ofIdx := strings.Index(upper, " OF ")
	if ofIdx < 0 {
		return "", false
	}

	elementType = strings.TrimSpace(typeName[ofIdx+len(" OF "):])
	if elementType == "" {
		return "", false
	}

	return elementType, true
}

// resolveArraySymbol resolves a symbol path, which may carry bracketed array
// indices, to the IndexGroup/IndexOffset/size triple that addresses it on
// the PLC. For a plain symbol it returns the symbol's own address; for a
// bracketed access it locates the addressed element within the array using
// the symbol's type information and offsets into it accordingly.
func (c *Client) resolveArraySymbol(ctx context.Context, symbolName string) (indexGroup uint32, indexOffset uint32, size uint32, err error) {
	baseName, arrayIndices, err := parseArrayAccess(symbolName)
	if err != nil {
		return 0, 0, 0, err
	}

	symbol, err := c.symbolTable.Get(baseName)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("get symbol %q: %w", baseName, err)
	}

	if len(arrayIndices) == 0 {
		return symbol.IndexGroup, symbol.IndexOffset, symbol.Size, nil
	}

	typeInfo := symbol.Type
	if !typeInfo.IsArray || len(typeInfo.ArrayDims) == 0 {
		return 0, 0, 0, fmt.Errorf("symbol %q is not an array type", baseName)
	}
	if len(arrayIndices) != len(typeInfo.ArrayDims) {
		return 0, 0, 0, fmt.Errorf("symbol %q has %d dimension(s), got %d index(es)",
			baseName, len(typeInfo.ArrayDims), len(arrayIndices))
	}

	totalElements := uint32(1)
	for _, dim := range typeInfo.ArrayDims {
		totalElements *= dim
	}
	if totalElements == 0 {
		return 0, 0, 0, fmt.Errorf("symbol %q has zero array elements", baseName)
	}
	elementSize := typeInfo.Size / totalElements
	if elementSize == 0 {
		return 0, 0, 0, fmt.Errorf("symbol %q: invalid element size (total=%d, elements=%d)",
			baseName, typeInfo.Size, totalElements)
	}

	// Row-major flat index over the (possibly multi-dimensional) array.
	flatIndex := uint32(0)
	for dim, idx := range arrayIndices {
		if idx < 0 || uint32(idx) >= typeInfo.ArrayDims[dim] {
			return 0, 0, 0, fmt.Errorf("symbol %q: index %d out of bounds for dimension %d (size %d)",
				baseName, idx, dim, typeInfo.ArrayDims[dim])
		}
		flatIndex = flatIndex*typeInfo.ArrayDims[dim] + uint32(idx)
	}

	elementOffset := flatIndex * elementSize
	if elementOffset+elementSize > symbol.Size {
		return 0, 0, 0, fmt.Errorf("symbol %q: element offset %d exceeds symbol size %d",
			baseName, elementOffset, symbol.Size)
	}

	return symbol.IndexGroup, symbol.IndexOffset + elementOffset, elementSize, nil
}
