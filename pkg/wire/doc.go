// Package wire implements the command/response framing shared by the
// microcontroller and the bridge.
//
// A request packet carries a command id, an argument count and that many
// length-prefixed arguments:
//
//	[cmd u16][argc u16]([len u16][len bytes])*argc
//
// A response frame is addressed to an opaque callback handle owned by the
// microcontroller and ends with a CRC-16/XMODEM over everything before it:
//
//	[cmd u16][handle u32][flags u32][count u16]([len u16][len bytes])*count[crc u16]
//
// All integers are little-endian. Handles are correlation tokens only,
// they are echoed back verbatim and never interpreted on this side.
//
// Neither a request packet with its link trailer nor a response frame may
// exceed MaxFrameLen bytes.
package wire
