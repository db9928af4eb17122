// Package lwes models Light Weight Event System events and their wire format.
//
// An Event is a name plus an insertion-ordered set of typed attributes. Each
// attribute holds a Value, a closed union over the nine LWES primitive types:
//
//	UInt16  Int16  UInt32  Int32  UInt64  Int64  Boolean  IPv4Address  String
//
// FormatValue renders a Value to its canonical text form. The same text is
// used for display and for equality checks in filters, so it must stay stable.
//
// Decode and Encode convert between Event and the serialized datagram form:
//
//	nameLen:u8 name numAttrs:u16 { keyLen:u8 key type:u8 value }*
//
// All integers are big-endian, strings carry a u16 length prefix, and
// IPv4 addresses are stored least-significant octet first.
package lwes
