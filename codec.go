package httpcachestore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Wire format for a MetadataEntry blob. Per spec §9, this is an explicit,
// versioned, length-prefixed format rather than relying on a host-language
// object serializer:
//
//	magic      [4]byte  "HCV1"
//	variantCount uint32
//	for each variant:
//	  headerMap (request)
//	  headerMap (response)
//
//	headerMap:
//	  fieldCount uint32
//	  for each field (in sorted name order, for deterministic bytes):
//	    nameLen  uint32
//	    name     []byte
//	    valueCount uint32
//	    for each value:
//	      valueLen uint32
//	      value    []byte
var wireMagic = [4]byte{'H', 'C', 'V', '1'}

// encodeMetadataEntry serializes entry into the wire format above. The
// round-trip property (spec §9 / P1) is the contract: decodeMetadataEntry
// applied to this output must reproduce entry exactly, including order.
func encodeMetadataEntry(entry MetadataEntry) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(wireMagic[:])
	if err := writeUint32(&buf, uint32(len(entry))); err != nil {
		return nil, err
	}
	for _, variant := range entry {
		if err := writeHeaders(&buf, variant.Request); err != nil {
			return nil, err
		}
		if err := writeHeaders(&buf, variant.Response); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// decodeMetadataEntry is the inverse of encodeMetadataEntry. Any structural
// problem (bad magic, truncated data, inconsistent counts) yields
// errCorruptMetadata; per spec §7 policy, the caller treats that the same
// as a missing key.
func decodeMetadataEntry(data []byte) (MetadataEntry, error) {
	r := bytes.NewReader(data)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != wireMagic {
		return nil, errCorruptMetadata
	}
	count, err := readUint32(r)
	if err != nil {
		return nil, errCorruptMetadata
	}
	entry := make(MetadataEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		req, err := readHeaders(r)
		if err != nil {
			return nil, errCorruptMetadata
		}
		resp, err := readHeaders(r)
		if err != nil {
			return nil, errCorruptMetadata
		}
		entry = append(entry, Variant{Request: req, Response: resp})
	}
	return entry, nil
}

func writeHeaders(buf *bytes.Buffer, h Headers) error {
	names := h.sortedNames()
	if err := writeUint32(buf, uint32(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		if err := writeString(buf, name); err != nil {
			return err
		}
		values := h[name]
		if err := writeUint32(buf, uint32(len(values))); err != nil {
			return err
		}
		for _, value := range values {
			if err := writeString(buf, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func readHeaders(r *bytes.Reader) (Headers, error) {
	fieldCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	h := make(Headers, fieldCount)
	for i := uint32(0); i < fieldCount; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		valueCount, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		values := make([]string, valueCount)
		for j := uint32(0); j < valueCount; j++ {
			v, err := readString(r)
			if err != nil {
				return nil, err
			}
			values[j] = v
		}
		h[name] = values
	}
	return h, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) error {
	return binary.Write(buf, binary.BigEndian, v)
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if err := writeUint32(buf, uint32(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	if int64(n) > int64(r.Len()) {
		return "", fmt.Errorf("httpcachestore: wire string length %d exceeds remaining buffer", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
