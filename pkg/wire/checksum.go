package wire

import "github.com/sigurn/crc16"

// Checksum is the running CRC-16/XMODEM of a frame.
type Checksum uint16

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

func newChecksum() Checksum {
	return Checksum(crc16.Init(crcTable))
}

func (c Checksum) update(p []byte) Checksum {
	return Checksum(crc16.Update(uint16(c), p, crcTable))
}

func (c Checksum) complete() Checksum {
	return Checksum(crc16.Complete(uint16(c), crcTable))
}

// ComputeChecksum calculates the checksum of b in one pass.
func ComputeChecksum(b []byte) Checksum {
	return Checksum(crc16.Checksum(b, crcTable))
}
