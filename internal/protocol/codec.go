package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// separator terminates every frame on the wire. JSON escapes control
// characters inside strings, so an encoded payload can never contain a raw
// NUL byte.
const separator byte = 0x00

// ErrMalformed reports a frame whose payload did not parse as a JSON
// object. It is non-fatal: the frame has been consumed and the caller
// should log it and keep reading.
var ErrMalformed = errors.New("protocol: malformed frame")

// Encode serializes a message to a single NUL-terminated frame.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(map[string]any(m.record()))
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.MessageType(), err)
	}
	return append(data, separator), nil
}

// Decoder reads NUL-terminated frames from a byte stream and parses each
// payload into a Record for classification.
type Decoder struct {
	r        *bufio.Reader
	maxFrame int64
}

// NewDecoder wraps a stream. Frames longer than maxFrame bytes are consumed
// and reported as malformed; maxFrame <= 0 disables the limit.
func NewDecoder(r io.Reader, maxFrame int64) *Decoder {
	return &Decoder{r: bufio.NewReader(r), maxFrame: maxFrame}
}

// Decode reads up to the next frame separator and parses the payload.
// It returns io.EOF when the peer has closed the stream or sent an empty
// frame, ErrMalformed (wrapped) when the payload is not a JSON object, and
// any other error verbatim as a transport fault.
func (d *Decoder) Decode() (Record, error) {
	payload, err := d.readFrame()
	if err != nil {
		return nil, err
	}

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		// A zero-length terminal read signals end of stream.
		return nil, io.EOF
	}

	var rec Record
	if jsonErr := json.Unmarshal(payload, &rec); jsonErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, jsonErr)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrMalformed)
	}
	return rec, nil
}

// readFrame consumes bytes up to and including the next separator. A frame
// exceeding the size limit is drained to its separator so the stream stays
// aligned, then reported as malformed.
func (d *Decoder) readFrame() ([]byte, error) {
	var buf []byte
	overflowed := false

	for {
		b, err := d.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(buf) == 0 || overflowed {
					return nil, io.EOF
				}
				// Trailing unterminated frame: hand it up once; the next
				// call will observe end of stream.
				return buf, nil
			}
			return nil, err
		}
		if b == separator {
			break
		}
		if d.maxFrame > 0 && int64(len(buf)) >= d.maxFrame {
			overflowed = true
			continue
		}
		buf = append(buf, b)
	}

	if overflowed {
		return nil, fmt.Errorf("%w: frame exceeds %d bytes", ErrMalformed, d.maxFrame)
	}
	return buf, nil
}
