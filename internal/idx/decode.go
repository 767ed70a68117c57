package idx

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Decode 解压 gzip 容器并解析其中的 IDX 内容。
func Decode(r io.Reader) (*Dataset, error) {
	raw, err := decompress(r)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// DecodeRaw 解析未压缩的 IDX 流。
func DecodeRaw(r io.Reader) (*Dataset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse 解析完整的 IDX 字节序列；Payload 与 raw 共享内存。
func Parse(raw []byte) (*Dataset, error) {
	br := bytes.NewReader(raw)

	var magic uint32
	if err := binary.Read(br, binary.BigEndian, &magic); err != nil {
		return nil, headerErr(0, err)
	}

	var rank int
	switch magic {
	case MagicLabels:
		rank = 1
	case MagicImages:
		rank = 3
	default:
		return nil, &FormatError{Magic: magic, Reason: "unrecognized magic number"}
	}

	fields := make([]uint32, rank)
	if err := binary.Read(br, binary.BigEndian, fields); err != nil {
		return nil, headerErr(magic, err)
	}
	dims := make([]int, rank)
	for i, v := range fields {
		dims[i] = int(v)
	}

	header := 4 * (1 + rank)
	ds := &Dataset{
		Magic:   magic,
		Dims:    dims,
		Payload: raw[header:],
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Encode 以 IDX 布局写出 Dataset（未压缩），主要用于导出与测试夹具。
func Encode(w io.Writer, ds *Dataset) error {
	if ds.Kind() == 0 {
		return &FormatError{Magic: ds.Magic, Reason: "unrecognized magic number"}
	}
	header := make([]uint32, 0, 1+len(ds.Dims))
	header = append(header, ds.Magic)
	for _, d := range ds.Dims {
		header = append(header, uint32(d))
	}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	_, err := w.Write(ds.Payload)
	return err
}

func headerErr(magic uint32, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &FormatError{Magic: magic, Reason: "truncated header"}
	}
	return &FormatError{Magic: magic, Reason: err.Error()}
}
