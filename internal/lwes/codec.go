package lwes

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Decoding errors. They are always wrapped in a *DecodeError.
var (
	ErrTruncated     = errors.New("datagram truncated")
	ErrEmptyName     = errors.New("empty event name")
	ErrEmptyKey      = errors.New("empty attribute name")
	ErrUnknownType   = errors.New("unknown attribute type")
	ErrTrailingBytes = errors.New("trailing bytes after last attribute")
)

// DecodeError reports where a datagram stopped making sense.
type DecodeError struct {
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding event at offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) fail(err error) error {
	return &DecodeError{Offset: d.off, Err: err}
}

func (d *decoder) take(n int) ([]byte, error) {
	if len(d.buf)-d.off < n {
		return nil, d.fail(ErrTruncated)
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) u8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) u64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// shortString reads a string with a one-byte length prefix.
func (d *decoder) shortString() (string, error) {
	n, err := d.u8()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) value(t Type) (Value, error) {
	switch t {
	case TypeUInt16:
		v, err := d.u16()
		return UInt16(v), err
	case TypeInt16:
		v, err := d.u16()
		return Int16(int16(v)), err
	case TypeUInt32:
		v, err := d.u32()
		return UInt32(v), err
	case TypeInt32:
		v, err := d.u32()
		return Int32(int32(v)), err
	case TypeUInt64:
		v, err := d.u64()
		return UInt64(v), err
	case TypeInt64:
		v, err := d.u64()
		return Int64(int64(v)), err
	case TypeBoolean:
		v, err := d.u8()
		return Boolean(v == 1), err
	case TypeIPv4Address:
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}
		return IPv4Address{b[3], b[2], b[1], b[0]}, nil
	case TypeString:
		n, err := d.u16()
		if err != nil {
			return nil, err
		}
		b, err := d.take(int(n))
		if err != nil {
			return nil, err
		}
		return String(b), nil
	default:
		return nil, d.fail(fmt.Errorf("%w 0x%02x", ErrUnknownType, uint8(t)))
	}
}

// Decode parses one serialized event from buf into ev.
// ev is reset first; on error it may hold a partially decoded event.
func Decode(buf []byte, ev *Event) error {
	ev.Reset()
	d := &decoder{buf: buf}

	name, err := d.shortString()
	if err != nil {
		return err
	}
	if name == "" {
		return d.fail(ErrEmptyName)
	}
	ev.Name = name

	count, err := d.u16()
	if err != nil {
		return err
	}

	for i := 0; i < int(count); i++ {
		key, err := d.shortString()
		if err != nil {
			return err
		}
		if key == "" {
			return d.fail(ErrEmptyKey)
		}
		token, err := d.u8()
		if err != nil {
			return err
		}
		v, err := d.value(Type(token))
		if err != nil {
			return err
		}
		ev.Set(key, v)
	}

	if d.off != len(buf) {
		return d.fail(ErrTrailingBytes)
	}
	return nil
}

// Encode serializes ev into the LWES wire format.
func Encode(ev *Event) ([]byte, error) {
	if ev.Name == "" {
		return nil, ErrEmptyName
	}
	if len(ev.Name) > math.MaxUint8 {
		return nil, fmt.Errorf("event name %q exceeds %d bytes", ev.Name, math.MaxUint8)
	}
	if ev.Len() > math.MaxUint16 {
		return nil, fmt.Errorf("event %q has %d attributes, limit is %d", ev.Name, ev.Len(), math.MaxUint16)
	}

	buf := make([]byte, 0, 64)
	buf = append(buf, uint8(len(ev.Name)))
	buf = append(buf, ev.Name...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(ev.Len()))

	for key, v := range ev.All() {
		if key == "" {
			return nil, ErrEmptyKey
		}
		if len(key) > math.MaxUint8 {
			return nil, fmt.Errorf("attribute name %q exceeds %d bytes", key, math.MaxUint8)
		}
		buf = append(buf, uint8(len(key)))
		buf = append(buf, key...)
		buf = append(buf, uint8(v.Type()))

		switch v := v.(type) {
		case UInt16:
			buf = binary.BigEndian.AppendUint16(buf, uint16(v))
		case Int16:
			buf = binary.BigEndian.AppendUint16(buf, uint16(v))
		case UInt32:
			buf = binary.BigEndian.AppendUint32(buf, uint32(v))
		case Int32:
			buf = binary.BigEndian.AppendUint32(buf, uint32(v))
		case UInt64:
			buf = binary.BigEndian.AppendUint64(buf, uint64(v))
		case Int64:
			buf = binary.BigEndian.AppendUint64(buf, uint64(v))
		case Boolean:
			if v {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case IPv4Address:
			buf = append(buf, v[3], v[2], v[1], v[0])
		case String:
			if len(v) > math.MaxUint16 {
				return nil, fmt.Errorf("attribute %q: string exceeds %d bytes", key, math.MaxUint16)
			}
			buf = binary.BigEndian.AppendUint16(buf, uint16(len(v)))
			buf = append(buf, v...)
		default:
			panic(fmt.Sprintf("lwes: cannot encode attribute value %T", v))
		}
	}

	return buf, nil
}
