package strict

import (
	"bytes"
	"fmt"
	"io"
	"sort"
)

// WriteSlice writes a uint16 length prefix followed by every item in order.
// Ordered collections keep their declared order; the caller is responsible
// for any canonical sorting of semantically unordered data (see WriteMap).
func WriteSlice[T any](w *bytes.Buffer, items []T,
	writeItem func(*bytes.Buffer, T) error) error {

	if len(items) > MaxCollectionSize {
		return fmt.Errorf("collection of length %d exceeds max of %d",
			len(items), MaxCollectionSize)
	}

	if err := WriteElement(w, uint16(len(items))); err != nil {
		return err
	}

	for _, item := range items {
		if err := writeItem(w, item); err != nil {
			return err
		}
	}

	return nil
}

// ReadSlice reads a uint16 length prefix followed by that many items.
func ReadSlice[T any](r io.Reader,
	readItem func(io.Reader) (T, error)) ([]T, error) {

	var length uint16
	if err := ReadElement(r, &length); err != nil {
		return nil, err
	}

	items := make([]T, 0, length)
	for i := uint16(0); i < length; i++ {
		item, err := readItem(r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

// WriteMap writes a map in a single canonical order: entries are sorted by
// the byte order of their encoded keys, so two semantically equal maps
// always produce byte-identical output regardless of insertion order.
func WriteMap[K comparable, V any](w *bytes.Buffer, m map[K]V,
	writeKey func(*bytes.Buffer, K) error,
	writeValue func(*bytes.Buffer, V) error) error {

	if len(m) > MaxCollectionSize {
		return fmt.Errorf("map of length %d exceeds max of %d",
			len(m), MaxCollectionSize)
	}

	type entry struct {
		key     K
		encoded []byte
	}

	entries := make([]entry, 0, len(m))
	for k := range m {
		var keyBuf bytes.Buffer
		if err := writeKey(&keyBuf, k); err != nil {
			return err
		}
		entries = append(entries, entry{key: k, encoded: keyBuf.Bytes()})
	}

	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].encoded, entries[j].encoded) < 0
	})

	if err := WriteElement(w, uint16(len(entries))); err != nil {
		return err
	}

	for _, e := range entries {
		if _, err := w.Write(e.encoded); err != nil {
			return err
		}
		if err := writeValue(w, m[e.key]); err != nil {
			return err
		}
	}

	return nil
}

// ReadMap reads a canonically ordered map written by WriteMap. Keys must
// appear in strictly ascending encoded byte order; anything else (including
// duplicates) would give the same map two encodings and is rejected as
// malformed.
func ReadMap[K comparable, V any](r io.Reader,
	readKey func(io.Reader) (K, error),
	encodeKey func(*bytes.Buffer, K) error,
	readValue func(io.Reader) (V, error)) (map[K]V, error) {

	var length uint16
	if err := ReadElement(r, &length); err != nil {
		return nil, err
	}

	m := make(map[K]V, length)

	var prevKey []byte
	for i := uint16(0); i < length; i++ {
		k, err := readKey(r)
		if err != nil {
			return nil, err
		}

		var keyBuf bytes.Buffer
		if err := encodeKey(&keyBuf, k); err != nil {
			return nil, err
		}
		if prevKey != nil &&
			bytes.Compare(prevKey, keyBuf.Bytes()) >= 0 {

			return nil, errMalformed("map keys not in strictly " +
				"ascending order")
		}
		prevKey = keyBuf.Bytes()

		v, err := readValue(r)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}

	return m, nil
}
