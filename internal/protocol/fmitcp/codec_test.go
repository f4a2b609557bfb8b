package fmitcp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip_GetReal(t *testing.T) {
	req := &Request{
		Op:        OpGetReal,
		MessageID: 5,
		FmuID:     1,
		ValueRefs: []uint32{7, 9, 12},
	}
	wire, err := EncodeRequest(req)
	require.NoError(t, err)

	got, err := DecodeRequest(wire)
	require.NoError(t, err)
	require.Equal(t, req.Op, got.Op)
	require.Equal(t, req.MessageID, got.MessageID)
	require.Equal(t, req.ValueRefs, got.ValueRefs)
}

func TestResponseRoundTrip_ArrayLengthSymmetry(t *testing.T) {
	resp := &Response{
		Op:         OpGetReal,
		MessageID:  5,
		Status:     StatusOK,
		RealValues: []float64{3.14, 2.71, 1.41},
	}
	wire, err := EncodeResponse(resp)
	require.NoError(t, err)

	got, err := DecodeResponse(wire)
	require.NoError(t, err)
	require.Len(t, got.RealValues, len(resp.RealValues))
	require.Equal(t, resp.RealValues, got.RealValues)
}

func TestDecodeRequest_UnknownOperation(t *testing.T) {
	req := &Request{Op: Op(9999), MessageID: 1}
	wire, err := EncodeRequest(req)
	require.NoError(t, err)

	_, err = DecodeRequest(wire)
	require.ErrorIs(t, err, ErrUnknownOperation)
}

func TestDecodeRequest_TruncatedPayloadIsDecodeError(t *testing.T) {
	_, err := DecodeRequest([]byte{0x00, 0x01})
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
}

func TestIsKeepalive(t *testing.T) {
	require.True(t, IsKeepalive([]byte("\n")))
	require.True(t, IsKeepalive(nil))
	require.False(t, IsKeepalive([]byte("not a keepalive")))
}

func TestFrame_WriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello fmitcp")
	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestFrame_KeepaliveRecordDoesNotDesynchronize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, keepalive))
	req := &Request{Op: OpInstantiate, MessageID: 1}
	wire, err := EncodeRequest(req)
	require.NoError(t, err)
	require.NoError(t, WriteFrame(&buf, wire))

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.True(t, IsKeepalive(first))

	second, err := ReadFrame(&buf)
	require.NoError(t, err)
	got, err := DecodeRequest(second)
	require.NoError(t, err)
	require.Equal(t, uint32(1), got.MessageID)
}
