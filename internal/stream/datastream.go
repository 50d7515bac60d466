// Package stream writes the AI data-stream line protocol: one typed part per
// line, "<code>:<json>\n". Only the parts the chat endpoint emits are supported.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	PartText   = '0'
	PartError  = '3'
	PartFinish = 'd'
)

const FinishReasonStop = "stop"

// FinishPayload is the body of the finish part.
type FinishPayload struct {
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Writer emits data-stream parts to an HTTP response, flushing after each one.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func NewWriter(w http.ResponseWriter) *Writer {
	f, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: f}
}

func (s *Writer) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Vercel-AI-Data-Stream", "v1")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

// Started reports whether the response status has been sent.
func (s *Writer) Started() bool { return s.started }

func (s *Writer) writePart(code byte, v interface{}) error {
	s.start()
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	line := make([]byte, 0, len(payload)+3)
	line = append(line, code, ':')
	line = append(line, payload...)
	line = append(line, '\n')

	if _, err := s.w.Write(line); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *Writer) Text(chunk string) error {
	return s.writePart(PartText, chunk)
}

func (s *Writer) Error(message string) error {
	return s.writePart(PartError, message)
}

func (s *Writer) Finish() error {
	return s.writePart(PartFinish, FinishPayload{FinishReason: FinishReasonStop})
}

var ErrMalformedPart = errors.New("malformed data-stream part")

// ParseLine splits one line into its part code and raw JSON payload.
func ParseLine(line string) (byte, json.RawMessage, error) {
	line = strings.TrimSuffix(line, "\n")
	if len(line) < 3 || line[1] != ':' {
		return 0, nil, ErrMalformedPart
	}
	raw := json.RawMessage(line[2:])
	if !json.Valid(raw) {
		return 0, nil, fmt.Errorf("%w: invalid JSON payload", ErrMalformedPart)
	}
	return line[0], raw, nil
}
