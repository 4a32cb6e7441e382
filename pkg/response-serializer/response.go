package serializer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Snapshot is a captured response: status, headers and body, and nothing else.
type Snapshot struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Capture reads the body of res into a snapshot.
// The snapshot's Content-Length header is set to the length of the body.
// The body of res is replaced with a fresh reader over the same bytes,
// so that the caller can still consume res after capturing it.
func Capture(res *http.Response) (Snapshot, error) {
	snap := Snapshot{
		StatusCode: res.StatusCode,
		Header:     res.Header.Clone(),
	}
	if snap.Header == nil {
		snap.Header = http.Header{}
	}
	if res.Body != nil {
		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			return snap, fmt.Errorf("could not read response body: %w", err)
		}
		snap.Body = body
	}
	// the body is held in full, so framing is by length only
	snap.Header.Del("Transfer-Encoding")
	snap.Header.Set("Content-Length", strconv.Itoa(len(snap.Body)))
	res.Body = io.NopCloser(bytes.NewReader(snap.Body))
	return snap, nil
}

// Response creates a new response from the snapshot.
// Every call returns an independent response with its own body reader and header map.
func (s Snapshot) Response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", s.StatusCode, http.StatusText(s.StatusCode)),
		StatusCode:    s.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        s.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(s.Body)),
		ContentLength: int64(len(s.Body)),
		Request:       req,
	}
}

// Bytes returns the HTTP/1.1 representation of the snapshot.
func (s Snapshot) Bytes() []byte {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\n", s.StatusCode, http.StatusText(s.StatusCode))
	s.Header.Write(buf)
	buf.WriteString("\r\n")
	buf.Write(s.Body)
	return buf.Bytes()
}

// FromBytes parses a snapshot written by Snapshot.Bytes.
func FromBytes(b []byte) (Snapshot, error) {
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("could not read stored response: %w", err)
	}
	return Capture(res)
}

// ResponseToBytes serializes the response and restores its body,
// so that the stored bytes and the response are independent of each other.
func ResponseToBytes(res *http.Response) ([]byte, error) {
	snap, err := Capture(res)
	if err != nil {
		return nil, err
	}
	return snap.Bytes(), nil
}

// BytesToResponse creates a response from stored bytes.
func BytesToResponse(b []byte, req *http.Request) (*http.Response, error) {
	snap, err := FromBytes(b)
	if err != nil {
		return nil, err
	}
	return snap.Response(req), nil
}
