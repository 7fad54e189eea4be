package block

import (
	"errors"
	"fmt"

	"github.com/corelink-protocol/corelink-go/pkg/message"
)

// Block option errors.
var (
	ErrReservedSize = errors.New("block size exponent 7 is reserved")
	ErrNumTooLarge  = errors.New("block number exceeds 20 bits")
	ErrInvalidSize  = errors.New("block size must be a power of two between 16 and 1024")
)

// MaxNum is the largest encodable segment number; the option value holds
// the number in its upper 20 bits.
const MaxNum = 1<<20 - 1

// Block is the decoded form of a Block2 option value: NUM/M/SZX packed as
// NUM<<4 | M<<3 | SZX.
type Block struct {
	// Num is the segment number, starting at zero.
	Num uint32

	// More reports that further segments follow this one.
	More bool

	// SZX encodes the segment size as 2^(SZX+4); 0 through 6 cover 16
	// through 1024 bytes, 7 is reserved.
	SZX uint8
}

// Size returns the segment size in bytes.
func (b Block) Size() int {
	return 1 << (b.SZX + 4)
}

// Offset returns the byte offset of this segment within the full body.
func (b Block) Offset() int {
	return int(b.Num) * b.Size()
}

// Value packs the block descriptor into its option value.
func (b Block) Value() uint32 {
	v := b.Num<<4 | uint32(b.SZX)
	if b.More {
		v |= 1 << 3
	}
	return v
}

// String renders the conventional NUM/M/SIZE form, e.g. "3/1/64".
func (b Block) String() string {
	m := 0
	if b.More {
		m = 1
	}
	return fmt.Sprintf("%d/%d/%d", b.Num, m, b.Size())
}

// Parse unpacks a Block2 option value.
func Parse(v uint32) (Block, error) {
	b := Block{
		Num:  v >> 4,
		More: v&(1<<3) != 0,
		SZX:  uint8(v & 0x7),
	}
	if b.SZX == 7 {
		return Block{}, ErrReservedSize
	}
	return b, nil
}

// SizeToSZX converts a byte size to its exponent form.
func SizeToSZX(size int) (uint8, error) {
	for szx := uint8(0); szx <= 6; szx++ {
		if 1<<(szx+4) == size {
			return szx, nil
		}
	}
	return 0, ErrInvalidSize
}

// FromMessage extracts the Block2 descriptor from a message, if present.
func FromMessage(msg *message.Message) (Block, bool, error) {
	v, ok := msg.Options.GetUint(message.OptionBlock2)
	if !ok {
		return Block{}, false, nil
	}
	b, err := Parse(v)
	if err != nil {
		return Block{}, true, err
	}
	return b, true, nil
}

// Apply sets the message's Block2 option to the descriptor. The number
// must fit the option's 20-bit field.
func Apply(msg *message.Message, b Block) error {
	if b.Num > MaxNum {
		return ErrNumTooLarge
	}
	if b.SZX > 6 {
		return ErrReservedSize
	}
	msg.Options.SetUint(message.OptionBlock2, b.Value())
	return nil
}
