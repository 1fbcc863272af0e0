package contract

import (
	"bytes"
	"sort"

	"github.com/lightningnetwork/lnd/tlv"
)

// Metadata is the typed metadata payload of a node, keyed by field type.
// On the wire it is a tlv stream: records in strictly ascending type order,
// which makes the encoding canonical regardless of how the map was built.
type Metadata map[tlv.Type][]byte

// Bytes returns the canonical tlv serialization of the metadata.
func (m Metadata) Bytes() ([]byte, error) {
	types := make([]tlv.Type, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	records := make([]tlv.Record, 0, len(types))
	values := make([][]byte, len(types))
	for i, t := range types {
		values[i] = m[t]
		records = append(
			records, tlv.MakePrimitiveRecord(t, &values[i]),
		)
	}

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	if err := stream.Encode(&b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// ParseMetadata decodes a canonical tlv stream into a Metadata map. The tlv
// decoder enforces the ascending-type rule, so any non-canonical stream is
// rejected.
func ParseMetadata(data []byte) (Metadata, error) {
	stream, err := tlv.NewStream()
	if err != nil {
		return nil, err
	}

	parsed, err := stream.DecodeWithParsedTypes(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	meta := make(Metadata, len(parsed))
	for t, v := range parsed {
		meta[t] = v
	}

	return meta, nil
}

// Equal reports whether two metadata maps carry the same fields.
func (m Metadata) Equal(other Metadata) bool {
	if len(m) != len(other) {
		return false
	}
	for t, v := range m {
		ov, ok := other[t]
		if !ok || !bytes.Equal(v, ov) {
			return false
		}
	}

	return true
}
