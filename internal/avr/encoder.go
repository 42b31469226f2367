package avr

// EncodeCommand formats an outgoing command as wire bytes:
// "#<group>,<number>,<data>\r". Data may be empty, in which case the
// trailing comma is still sent, matching what the receiver expects.
func EncodeCommand(cmd Command, data string) []byte {
	wire := cmd.Wire()
	buf := make([]byte, 0, 1+len(wire)+1+len(data)+1)
	buf = append(buf, CommandMarker)
	buf = append(buf, wire...)
	buf = append(buf, ',')
	buf = append(buf, data...)
	buf = append(buf, Delimiter)
	return buf
}
