package fmitcp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// ErrUnknownOperation is returned by Decode when the wire record's Op tag is
// outside the recognized enumeration (spec.md §7 UnknownOperation).
var ErrUnknownOperation = errors.New("fmitcp: unknown operation")

// DecodeError wraps a malformed or truncated payload (spec.md §7
// DecodeError). The caller logs it at ERROR and sends no response.
type DecodeError struct{ Err error }

func (e *DecodeError) Error() string { return fmt.Sprintf("fmitcp: decode error: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

const maxRecordSize = 64 << 20 // 64MiB: generous bound against a corrupt length prefix

// EncodeRequest marshals req into one wire record's payload; WriteFrame
// adds the length prefix.
func EncodeRequest(req *Request) ([]byte, error) {
	return encode(req)
}

// DecodeRequest unmarshals a single wire record (without its length prefix)
// into a Request. It returns ErrUnknownOperation if the Op tag is not
// recognized, wrapped in a *DecodeError only for actual malformed payloads.
func DecodeRequest(payload []byte) (*Request, error) {
	var req Request
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if !req.Op.Known() {
		return nil, ErrUnknownOperation
	}
	return &req, nil
}

// EncodeResponse marshals resp into one wire record's payload; WriteFrame
// adds the length prefix.
func EncodeResponse(resp *Response) ([]byte, error) {
	return encode(resp)
}

// DecodeResponse unmarshals a single wire record into a Response.
func DecodeResponse(payload []byte) (*Response, error) {
	var resp Response
	if err := decode(payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, v); err != nil {
		return nil, fmt.Errorf("fmitcp: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(payload []byte, v any) error {
	if _, err := xdr.Unmarshal(bytes.NewReader(payload), v); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// keepalive is the single-newline payload spec.md §6 requires every peer to
// tolerate and silently discard.
var keepalive = []byte("\n")

// IsKeepalive reports whether payload is the keepalive record.
func IsKeepalive(payload []byte) bool {
	return len(payload) == 0 || bytes.Equal(payload, keepalive)
}

// WriteFrame writes payload as one length-delimited record: a 4-byte
// big-endian length prefix followed by the payload bytes. This is the same
// record-marking idiom the reference connection server uses for its RPC
// framing, simplified to a plain length (FMI-TCP carries no ONC-RPC
// last-fragment bit).
func WriteFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-delimited record from r. It returns io.EOF
// only when the connection closes cleanly between records.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > maxRecordSize {
		return nil, fmt.Errorf("fmitcp: record of %d bytes exceeds maximum %d", length, maxRecordSize)
	}
	if length == 0 {
		return nil, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}
