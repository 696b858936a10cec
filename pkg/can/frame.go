package can

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Identifier flags and masks as used by struct can_frame.
const (
	flagEFF uint32 = 0x80000000
	flagRTR uint32 = 0x40000000
	flagERR uint32 = 0x20000000

	maskSFF uint32 = 0x000007FF
	maskEFF uint32 = 0x1FFFFFFF
)

// FrameSize is the size of a classic struct can_frame on the wire.
const FrameSize = 16

// MaxDataLen is the payload limit of a classic CAN frame.
const MaxDataLen = 8

var (
	errShortFrame = errors.New("can: short frame")
	errBadLength  = errors.New("can: data length exceeds 8")
)

// Frame is a classic CAN 2.0 frame.
type Frame struct {
	ID       uint32
	Extended bool
	Remote   bool
	Error    bool
	Len      uint8
	Data     [MaxDataLen]byte
}

// NewFrame builds a standard-ID data frame.
func NewFrame(id uint32, data ...byte) (Frame, error) {
	if len(data) > MaxDataLen {
		return Frame{}, errBadLength
	}
	f := Frame{ID: id & maskSFF, Len: uint8(len(data))}
	copy(f.Data[:], data)
	return f, nil
}

// Payload returns the used part of Data.
func (f Frame) Payload() []byte {
	n := f.Len
	if n > MaxDataLen {
		n = MaxDataLen
	}
	return f.Data[:n]
}

func (f Frame) String() string {
	if f.Extended {
		return fmt.Sprintf("%08X#% X", f.ID, f.Payload())
	}
	return fmt.Sprintf("%03X#% X", f.ID, f.Payload())
}

// MarshalBinary encodes the frame as struct can_frame in host byte order.
func (f Frame) MarshalBinary() ([]byte, error) {
	if f.Len > MaxDataLen {
		return nil, errBadLength
	}
	b := make([]byte, FrameSize)
	id := f.ID
	if f.Extended {
		id = (id & maskEFF) | flagEFF
	} else {
		id &= maskSFF
	}
	if f.Remote {
		id |= flagRTR
	}
	if f.Error {
		id |= flagERR
	}
	binary.NativeEndian.PutUint32(b[0:4], id)
	b[4] = f.Len
	copy(b[8:], f.Data[:])
	return b, nil
}

// UnmarshalBinary decodes a struct can_frame in host byte order.
func (f *Frame) UnmarshalBinary(b []byte) error {
	if len(b) < FrameSize {
		return errShortFrame
	}
	raw := binary.NativeEndian.Uint32(b[0:4])
	f.Extended = raw&flagEFF != 0
	f.Remote = raw&flagRTR != 0
	f.Error = raw&flagERR != 0
	if f.Extended {
		f.ID = raw & maskEFF
	} else {
		f.ID = raw & maskSFF
	}
	f.Len = b[4]
	if f.Len > MaxDataLen {
		return errBadLength
	}
	copy(f.Data[:], b[8:16])
	return nil
}
