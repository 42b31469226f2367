package avr

import "strings"

// assembler buffers raw bytes from the transport and splits them into
// complete delimiter-terminated messages. Messages commonly arrive in
// bursts and may straddle chunk boundaries; any trailing incomplete
// segment is retained until the rest of it arrives.
type assembler struct {
	pending strings.Builder
}

// feed appends a chunk of raw bytes and returns every complete message
// now available, in arrival order. Empty segments (consecutive
// delimiters) are discarded.
func (a *assembler) feed(data []byte) []string {
	a.pending.Write(data)

	buffered := a.pending.String()
	if !strings.ContainsRune(buffered, Delimiter) {
		return nil
	}

	segments := strings.Split(buffered, string(Delimiter))

	// The final segment is either empty (buffer ended on a delimiter)
	// or an incomplete message; either way it becomes the new pending
	// buffer.
	rest := segments[len(segments)-1]
	segments = segments[:len(segments)-1]

	a.pending.Reset()
	a.pending.WriteString(rest)

	messages := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment != "" {
			messages = append(messages, segment)
		}
	}
	return messages
}
