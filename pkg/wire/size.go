package wire

// MaxFrameLen bounds every packet and frame on a link, checksum trailer
// included. Link decoders size their buffers from it.
const MaxFrameLen = 4096

// FrameLen returns the encoded size of a response frame carrying chunks,
// trailer included.
func FrameLen(chunks ...[]byte) int {
	n := ResponseHeaderSize + ChecksumSize
	for _, chunk := range chunks {
		n += ArgLenSize + len(chunk)
	}
	return n
}

// RequestLen returns the encoded size of a request whose arguments have
// the given lengths, without the link trailer.
func RequestLen(argLens ...int) int {
	n := RequestHeaderSize
	for _, l := range argLens {
		n += ArgLenSize + l
	}
	return n
}
