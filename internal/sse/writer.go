package sse

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// Writer encodes events, flushing after each one when the destination supports it
type Writer struct {
	writer  io.Writer
	flusher http.Flusher
	mux     sync.Mutex
}

// Write encodes an event; multi-line data is split into data fields
func (w *Writer) Write(event *Event) error {
	builder := strings.Builder{}
	if event.ID != "" {
		builder.WriteString("id: " + event.ID + "\n")
	}
	if event.Event != "" {
		builder.WriteString("event: " + event.Event + "\n")
	}
	if event.Retry > 0 {
		builder.WriteString("retry: " + strconv.FormatInt(event.Retry.Milliseconds(), 10) + "\n")
	}
	data := strings.ReplaceAll(event.Data, "\r\n", "\n")
	for _, line := range strings.Split(data, "\n") {
		builder.WriteString("data: " + line + "\n")
	}
	builder.WriteString("\n")
	return w.write(builder.String())
}

// Comment writes a comment line, used as a keep-alive
func (w *Writer) Comment(text string) error {
	return w.write(": " + text + "\n\n")
}

func (w *Writer) write(text string) error {
	w.mux.Lock()
	defer w.mux.Unlock()
	if _, err := io.WriteString(w.writer, text); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// NewWriter creates a writer
func NewWriter(writer io.Writer) *Writer {
	flusher, _ := writer.(http.Flusher)
	return &Writer{writer: writer, flusher: flusher}
}
