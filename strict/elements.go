package strict

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// WriteElement is a one-stop shop to write the canonical little-endian
// representation of any element to the passed buffer. An error is returned
// if the type of the element is unknown.
func WriteElement(w *bytes.Buffer, element interface{}) error {
	switch e := element.(type) {
	case uint8:
		return w.WriteByte(e)

	case uint16:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], e)
		_, err := w.Write(b[:])
		return err

	case uint32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], e)
		_, err := w.Write(b[:])
		return err

	case uint64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], e)
		_, err := w.Write(b[:])
		return err

	case bool:
		if e {
			return w.WriteByte(1)
		}
		return w.WriteByte(0)

	case [32]byte:
		_, err := w.Write(e[:])
		return err

	case chainhash.Hash:
		_, err := w.Write(e[:])
		return err

	case *chainhash.Hash:
		if e == nil {
			return fmt.Errorf("cannot encode nil hash")
		}
		_, err := w.Write(e[:])
		return err

	case *btcec.PublicKey:
		if e == nil {
			return fmt.Errorf("cannot encode nil pubkey")
		}
		_, err := w.Write(e.SerializeCompressed())
		return err

	case []byte:
		if len(e) > MaxCollectionSize {
			return fmt.Errorf("byte slice of length %d exceeds "+
				"max of %d", len(e), MaxCollectionSize)
		}
		if err := WriteElement(w, uint16(len(e))); err != nil {
			return err
		}
		_, err := w.Write(e)
		return err

	case string:
		return WriteElement(w, []byte(e))

	case wire.OutPoint:
		if err := WriteElement(w, e.Hash); err != nil {
			return err
		}
		return WriteElement(w, e.Index)

	case Encodable:
		return e.EncodeTo(w)

	default:
		return fmt.Errorf("unknown type in WriteElement: %T", e)
	}
}

// WriteElements writes each element in the elements slice to the passed
// buffer using WriteElement.
func WriteElements(w *bytes.Buffer, elements ...interface{}) error {
	for _, element := range elements {
		if err := WriteElement(w, element); err != nil {
			return err
		}
	}

	return nil
}

// readFull reads exactly len(buf) bytes, mapping any shortfall to
// ErrMalformedEncoding: a truncated buffer is not a valid encoding.
func readFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return errMalformed("short read: %v", err)
	}

	return nil
}

// ReadElement is the inverse of WriteElement: it reads the canonical
// representation of the element pointed to by the passed argument. An error
// is returned if the type is unknown or the bytes do not form an exact
// encoding of the target type.
func ReadElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *uint8:
		var b [1]byte
		if err := readFull(r, b[:]); err != nil {
			return err
		}
		*e = b[0]

	case *uint16:
		var b [2]byte
		if err := readFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.LittleEndian.Uint16(b[:])

	case *uint32:
		var b [4]byte
		if err := readFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.LittleEndian.Uint32(b[:])

	case *uint64:
		var b [8]byte
		if err := readFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.LittleEndian.Uint64(b[:])

	case *bool:
		var b [1]byte
		if err := readFull(r, b[:]); err != nil {
			return err
		}
		switch b[0] {
		case 0:
			*e = false
		case 1:
			*e = true
		default:
			// Anything else would give booleans two encodings.
			return errMalformed("invalid bool byte %d", b[0])
		}

	case *[32]byte:
		if err := readFull(r, e[:]); err != nil {
			return err
		}

	case *chainhash.Hash:
		if err := readFull(r, e[:]); err != nil {
			return err
		}

	case **btcec.PublicKey:
		var b [33]byte
		if err := readFull(r, b[:]); err != nil {
			return err
		}
		pubKey, err := btcec.ParsePubKey(b[:])
		if err != nil {
			return errMalformed("invalid pubkey: %v", err)
		}
		*e = pubKey

	case *[]byte:
		var length uint16
		if err := ReadElement(r, &length); err != nil {
			return err
		}
		buf := make([]byte, length)
		if err := readFull(r, buf); err != nil {
			return err
		}
		*e = buf

	case *string:
		var buf []byte
		if err := ReadElement(r, &buf); err != nil {
			return err
		}
		*e = string(buf)

	case *wire.OutPoint:
		if err := ReadElement(r, &e.Hash); err != nil {
			return err
		}
		if err := ReadElement(r, &e.Index); err != nil {
			return err
		}

	case Encodable:
		return e.DecodeFrom(r)

	default:
		return fmt.Errorf("unknown type in ReadElement: %T", e)
	}

	return nil
}

// ReadElements reads each element in the elements slice from the passed
// reader using ReadElement.
func ReadElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		if err := ReadElement(r, element); err != nil {
			return err
		}
	}

	return nil
}
