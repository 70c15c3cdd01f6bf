package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Method names, matching the RPC surface in spec §6.
const (
	MethodPing          = "ping"
	MethodFindNode      = "find_node"
	MethodAdd           = "add"
	MethodShow          = "routing_table_show"
	MethodShowNodeView  = "show_node_view"
)

// Request is one RPC call: a method name and its single string argument
// (spec §6: "each method takes a single string argument or none").
type Request struct {
	ID     uint64
	Method string
	Arg    string
}

// Response carries either a result string or an error message.
type Response struct {
	ID     uint64
	Result string
	Err    string
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func getUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func putString(buf *bytes.Buffer, s string) {
	lenBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(lenBuf, uint64(len(s)))
	buf.Write(lenBuf[:n])
	buf.WriteString(s)
}

func getString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeRequest serializes a Request to bytes suitable for WriteFrame.
func EncodeRequest(req Request) []byte {
	var buf bytes.Buffer
	putUint64(&buf, req.ID)
	putString(&buf, req.Method)
	putString(&buf, req.Arg)
	return buf.Bytes()
}

// DecodeRequest parses bytes produced by EncodeRequest.
func DecodeRequest(data []byte) (Request, error) {
	r := bytes.NewReader(data)
	id, err := getUint64(r)
	if err != nil {
		return Request{}, errors.Wrap(err, "wire: decode request id")
	}
	method, err := getString(r)
	if err != nil {
		return Request{}, errors.Wrap(err, "wire: decode request method")
	}
	arg, err := getString(r)
	if err != nil {
		return Request{}, errors.Wrap(err, "wire: decode request arg")
	}
	return Request{ID: id, Method: method, Arg: arg}, nil
}

// EncodeResponse serializes a Response to bytes suitable for WriteFrame.
func EncodeResponse(resp Response) []byte {
	var buf bytes.Buffer
	putUint64(&buf, resp.ID)
	putString(&buf, resp.Result)
	putString(&buf, resp.Err)
	return buf.Bytes()
}

// DecodeResponse parses bytes produced by EncodeResponse.
func DecodeResponse(data []byte) (Response, error) {
	r := bytes.NewReader(data)
	id, err := getUint64(r)
	if err != nil {
		return Response{}, errors.Wrap(err, "wire: decode response id")
	}
	result, err := getString(r)
	if err != nil {
		return Response{}, errors.Wrap(err, "wire: decode response result")
	}
	errMsg, err := getString(r)
	if err != nil {
		return Response{}, errors.Wrap(err, "wire: decode response err")
	}
	return Response{ID: id, Result: result, Err: errMsg}, nil
}
