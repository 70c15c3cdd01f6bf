package wire

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundtrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello world")))

	got, err := ReadFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestFrameChecksumMismatch(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello world")))

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	_, err := ReadFrame(bufio.NewReader(bytes.NewReader(corrupted)))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestRequestResponseRoundtrip(t *testing.T) {
	t.Parallel()

	req := Request{ID: 42, Method: MethodFindNode, Arg: "1001 caller 0101 127.0.0.1 4242"}
	decodedReq, err := DecodeRequest(EncodeRequest(req))
	require.NoError(t, err)
	assert.Equal(t, req, decodedReq)

	resp := Response{ID: 42, Result: "1000 127.0.0.1 4242"}
	decodedResp, err := DecodeResponse(EncodeResponse(resp))
	require.NoError(t, err)
	assert.Equal(t, resp, decodedResp)
}
