package pipeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// maxLineBytes bounds one input line. Field reports run to a few KB; photos
// and audio never come through this path.
const maxLineBytes = 1 << 20

// Message is one text to classify. ID defaults to the 1-based line number.
type Message struct {
	ID   string
	Text string
}

// errMalformed marks an input line that could not be turned into a Message.
var errMalformed = errors.New("malformed input line")

type jsonMessage struct {
	ID      string  `json:"id"`
	Message *string `json:"message"`
}

// parseLine accepts either an NDJSON object {"id"?, "message"} or plain
// text. Multi-line reports need the NDJSON form, since a plain line ends at
// the newline.
func parseLine(line []byte, lineNo int) (Message, error) {
	id := strconv.Itoa(lineNo)
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var jm jsonMessage
		if err := json.Unmarshal(trimmed, &jm); err != nil {
			return Message{}, fmt.Errorf("line %d: %w: %w", lineNo, errMalformed, err)
		}
		if jm.Message == nil {
			return Message{}, fmt.Errorf("line %d: %w: missing \"message\"", lineNo, errMalformed)
		}
		if jm.ID != "" {
			id = jm.ID
		}
		return Message{ID: id, Text: *jm.Message}, nil
	}
	return Message{ID: id, Text: string(bytes.TrimRight(line, "\r"))}, nil
}

// readMessages calls fn for every non-blank line of r. Malformed NDJSON lines
// go to onBad and reading continues; an error from fn stops reading.
func readMessages(r io.Reader, fn func(Message) error, onBad func(error)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		msg, err := parseLine(line, lineNo)
		if err != nil {
			onBad(err)
			continue
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
