package protocol

// Latin1String decodes raw bytes as ISO-8859-1, the encoding the wire
// protocol uses to carry opaque message bodies as JSON strings without
// base64 padding. Every byte value 0x00-0xFF maps to the Unicode code
// point of the same value, so this never fails and never loses data.
func Latin1String(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
