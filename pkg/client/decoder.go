package client

import (
	"bufio"
	"bytes"
	"io"
)

// frame is one Server-Sent Events record. A comment line (": keepalive")
// yields a frame with Comment set and no data.
type frame struct {
	ID      string
	Event   string
	Data    []byte
	Comment bool
}

// decoder splits an event stream into frames.
type decoder struct {
	r *bufio.Reader
}

func newDecoder(r io.Reader) *decoder {
	return &decoder{r: bufio.NewReaderSize(r, 32*1024)}
}

// Next returns the next complete frame. A partial frame at end of stream is
// discarded and io.EOF returned.
func (d *decoder) Next() (frame, error) {
	var (
		f    frame
		data [][]byte
		seen bool
	)
	for {
		line, err := d.r.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return frame{}, io.EOF
			}
			return frame{}, err
		}
		line = bytes.TrimRight(line, "\r\n")

		if len(line) == 0 {
			if !seen {
				continue
			}
			f.Data = bytes.Join(data, []byte("\n"))
			return f, nil
		}

		if line[0] == ':' {
			if !seen {
				return frame{Comment: true}, nil
			}
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		switch string(field) {
		case "data":
			data = append(data, append([]byte(nil), value...))
			seen = true
		case "id":
			f.ID = string(value)
			seen = true
		case "event":
			f.Event = string(value)
			seen = true
		}
	}
}
