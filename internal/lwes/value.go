package lwes

import (
	"fmt"
	"net/netip"
	"strconv"
)

// Type is the wire token identifying an attribute's type.
type Type uint8

// Attribute type tokens as they appear on the wire.
const (
	TypeUInt16      Type = 0x01
	TypeInt16       Type = 0x02
	TypeUInt32      Type = 0x03
	TypeInt32       Type = 0x04
	TypeString      Type = 0x05
	TypeIPv4Address Type = 0x06
	TypeInt64       Type = 0x07
	TypeUInt64      Type = 0x08
	TypeBoolean     Type = 0x09
)

func (t Type) String() string {
	switch t {
	case TypeUInt16:
		return "uint16"
	case TypeInt16:
		return "int16"
	case TypeUInt32:
		return "uint32"
	case TypeInt32:
		return "int32"
	case TypeString:
		return "string"
	case TypeIPv4Address:
		return "ip_addr"
	case TypeInt64:
		return "int64"
	case TypeUInt64:
		return "uint64"
	case TypeBoolean:
		return "boolean"
	default:
		return fmt.Sprintf("type(0x%02x)", uint8(t))
	}
}

// Value is an attribute value. The set of implementations is closed:
// only the types declared in this package satisfy it.
type Value interface {
	Type() Type
	sealed()
}

type (
	UInt16      uint16
	Int16       int16
	UInt32      uint32
	Int32       int32
	UInt64      uint64
	Int64       int64
	Boolean     bool
	IPv4Address [4]byte
	String      string
)

func (UInt16) Type() Type      { return TypeUInt16 }
func (Int16) Type() Type       { return TypeInt16 }
func (UInt32) Type() Type      { return TypeUInt32 }
func (Int32) Type() Type       { return TypeInt32 }
func (UInt64) Type() Type      { return TypeUInt64 }
func (Int64) Type() Type       { return TypeInt64 }
func (Boolean) Type() Type     { return TypeBoolean }
func (IPv4Address) Type() Type { return TypeIPv4Address }
func (String) Type() Type      { return TypeString }

func (UInt16) sealed()      {}
func (Int16) sealed()       {}
func (UInt32) sealed()      {}
func (Int32) sealed()       {}
func (UInt64) sealed()      {}
func (Int64) sealed()       {}
func (Boolean) sealed()     {}
func (IPv4Address) sealed() {}
func (String) sealed()      {}

// ParseIPv4Address parses a dotted-quad address.
func ParseIPv4Address(s string) (IPv4Address, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return IPv4Address{}, err
	}
	if !addr.Is4() {
		return IPv4Address{}, fmt.Errorf("%q is not an IPv4 address", s)
	}
	return IPv4Address(addr.As4()), nil
}

func (a IPv4Address) String() string {
	return netip.AddrFrom4(a).String()
}

// FormatValue returns the canonical text form of v.
//
// Integers are plain decimal, booleans are "true" or "false", addresses are
// dotted quads and strings are returned as-is.
func FormatValue(v Value) string {
	return string(AppendValue(nil, v))
}

// AppendValue appends the canonical text form of v to dst.
func AppendValue(dst []byte, v Value) []byte {
	switch v := v.(type) {
	case UInt16:
		return strconv.AppendUint(dst, uint64(v), 10)
	case Int16:
		return strconv.AppendInt(dst, int64(v), 10)
	case UInt32:
		return strconv.AppendUint(dst, uint64(v), 10)
	case Int32:
		return strconv.AppendInt(dst, int64(v), 10)
	case UInt64:
		return strconv.AppendUint(dst, uint64(v), 10)
	case Int64:
		return strconv.AppendInt(dst, int64(v), 10)
	case Boolean:
		if v {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case IPv4Address:
		return netip.AddrFrom4(v).AppendTo(dst)
	case String:
		return append(dst, v...)
	default:
		// Unreachable unless a variant is added without updating this switch.
		panic(fmt.Sprintf("lwes: no text form for attribute value %T", v))
	}
}
