package sse

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxLineSize is the longest event line accepted by a Decoder
const DefaultMaxLineSize = 16 * 1024 * 1024

// Decoder reads events from a stream
type Decoder struct {
	reader      *bufio.Reader
	maxLineSize int
	lastID      string
}

// Decode returns the next dispatched event. A partially received event at end of stream is discarded.
func (d *Decoder) Decode() (*Event, error) {
	event := &Event{}
	data := strings.Builder{}
	hasData := false
	for {
		line, err := d.readLine()
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			if !hasData {
				event = &Event{}
				continue
			}
			event.Data = data.String()
			if event.ID == "" {
				event.ID = d.lastID
			}
			return event, nil
		}
		if line[0] == ':' {
			continue
		}
		field, value := line, ""
		if index := strings.IndexByte(line, ':'); index != -1 {
			field, value = line[:index], strings.TrimPrefix(line[index+1:], " ")
		}
		switch field {
		case "event":
			event.Event = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				event.ID = value
				d.lastID = value
			}
		case "retry":
			if millis, err := strconv.Atoi(value); err == nil {
				event.Retry = time.Duration(millis) * time.Millisecond
			}
		}
	}
}

func (d *Decoder) readLine() (string, error) {
	var line []byte
	for {
		fragment, err := d.reader.ReadSlice('\n')
		if len(line)+len(fragment) > d.maxLineSize {
			return "", fmt.Errorf("sse: line exceeds %d bytes", d.maxLineSize)
		}
		line = append(line, fragment...)
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				err = io.ErrUnexpectedEOF
			}
			return "", err
		}
		break
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return string(line), nil
}

// NewDecoder creates a decoder
func NewDecoder(reader io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReaderSize(reader, 64*1024), maxLineSize: DefaultMaxLineSize}
}
