// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package runstream

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/kvengine/vinyl/internal/base"
)

// Codec selects the page compression a Run was written with. Real on-disk
// runs mix codecs across a compaction's inputs (whichever codec was
// configured when each run was dumped), so RunStream must be able to
// decode any of them regardless of which codec the current WriteIterator
// would pick for new output.
type Codec uint8

const (
	// CodecNone stores pages uncompressed.
	CodecNone Codec = iota
	// CodecSnappy compresses pages with github.com/golang/snappy.
	CodecSnappy
	// CodecZstd compresses pages with github.com/klauspost/compress/zstd.
	CodecZstd
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecSnappy:
		return "snappy"
	case CodecZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

func encodePage(stmts []*base.Statement, codec Codec) ([]byte, error) {
	var buf bytes.Buffer
	for _, s := range stmts {
		writeStatement(&buf, s)
	}
	raw := buf.Bytes()

	switch codec {
	case CodecNone:
		return raw, nil
	case CodecSnappy:
		return snappy.Encode(nil, raw), nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, errors.Wrap(err, "runstream: creating zstd encoder")
		}
		defer enc.Close()
		return enc.EncodeAll(raw, nil), nil
	default:
		return nil, errors.Newf("runstream: unknown codec %d", codec)
	}
}

func decodePage(raw []byte, codec Codec, dec *zstd.Decoder) ([]*base.Statement, error) {
	var plain []byte
	switch codec {
	case CodecNone:
		plain = raw
	case CodecSnappy:
		var err error
		plain, err = snappy.Decode(nil, raw)
		if err != nil {
			return nil, errors.Wrap(err, "runstream: snappy decode")
		}
	case CodecZstd:
		var err error
		plain, err = dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, errors.Wrap(err, "runstream: zstd decode")
		}
	default:
		return nil, errors.Newf("runstream: unknown codec %d", codec)
	}
	return readStatements(plain)
}

func writeStatement(w *bytes.Buffer, s *base.Statement) {
	writeBytes(w, s.Key)
	var versBuf [8]byte
	binary.BigEndian.PutUint64(versBuf[:], uint64(s.Vers))
	w.Write(versBuf[:])
	w.WriteByte(byte(s.Kind))
	var maskBuf [8]byte
	binary.BigEndian.PutUint64(maskBuf[:], uint64(s.ColumnMask))
	w.Write(maskBuf[:])
	writeBytes(w, s.Payload)
}

func writeBytes(w *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	w.Write(lenBuf[:])
	w.Write(b)
}

func readStatements(plain []byte) ([]*base.Statement, error) {
	r := bytes.NewReader(plain)
	var stmts []*base.Statement
	for r.Len() > 0 {
		s, err := readStatement(r)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func readStatement(r *bytes.Reader) (*base.Statement, error) {
	key, err := readBytes(r)
	if err != nil {
		return nil, errors.Wrap(err, "runstream: reading key")
	}
	var versBuf [8]byte
	if _, err := io.ReadFull(r, versBuf[:]); err != nil {
		return nil, errors.Wrap(err, "runstream: reading version")
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "runstream: reading kind")
	}
	var maskBuf [8]byte
	if _, err := io.ReadFull(r, maskBuf[:]); err != nil {
		return nil, errors.Wrap(err, "runstream: reading column mask")
	}
	payload, err := readBytes(r)
	if err != nil {
		return nil, errors.Wrap(err, "runstream: reading payload")
	}
	return &base.Statement{
		Key:        base.Key(key),
		Vers:       base.Version(binary.BigEndian.Uint64(versBuf[:])),
		Kind:       base.StmtKind(kindByte),
		ColumnMask: base.ColumnMask(binary.BigEndian.Uint64(maskBuf[:])),
		Payload:    payload,
	}, nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
