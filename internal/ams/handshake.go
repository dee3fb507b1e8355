package ams

import (
	"encoding/binary"
	"fmt"
	"io"
)

// routerRegisterCommand is the AMS/TCP prefix command id used for the
// minimal loopback self-registration handshake. It carries no AMS header.
const routerRegisterCommand uint16 = 0x1000

// RouterRegisterRequest builds the 16-byte loopback registration frame.
// It has the same 6-byte reserved/length prefix as a normal frame, but the
// "command id" occupies the reserved slot and there is no AMS header —
// only a small fixed payload, which in practice carries the process id.
func RouterRegisterRequest(processID uint32) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint16(buf[0:2], routerRegisterCommand)
	binary.LittleEndian.PutUint32(buf[2:6], 10) // length of what follows
	binary.LittleEndian.PutUint32(buf[6:10], processID)
	// remaining 6 bytes reserved/zero
	return buf
}

// ReadRouterRegisterResponse reads the 14-byte router registration reply and
// returns the NetId and port assigned to this connection by the peer.
func ReadRouterRegisterResponse(r io.Reader) (NetID, Port, error) {
	buf := make([]byte, 14)
	if _, err := io.ReadFull(r, buf); err != nil {
		return NetID{}, 0, fmt.Errorf("ams: read router register response: %w", err)
	}
	var id NetID
	copy(id[:], buf[6:12])
	port := Port(binary.LittleEndian.Uint16(buf[12:14]))
	return id, port, nil
}
