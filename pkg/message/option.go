package message

import "strings"

// OptionNumber identifies an option. Numbers are encoded as deltas on the
// wire, so the option list must stay sorted ascending.
type OptionNumber uint16

// Registered option numbers.
const (
	OptionIfMatch       OptionNumber = 1
	OptionURIHost       OptionNumber = 3
	OptionETag          OptionNumber = 4
	OptionIfNoneMatch   OptionNumber = 5
	OptionObserve       OptionNumber = 6
	OptionURIPort       OptionNumber = 7
	OptionLocationPath  OptionNumber = 8
	OptionURIPath       OptionNumber = 11
	OptionContentFormat OptionNumber = 12
	OptionMaxAge        OptionNumber = 14
	OptionURIQuery      OptionNumber = 15
	OptionAccept        OptionNumber = 17
	OptionLocationQuery OptionNumber = 20
	OptionBlock2        OptionNumber = 23
	OptionBlock1        OptionNumber = 27
	OptionSize2         OptionNumber = 28
	OptionProxyURI      OptionNumber = 35
	OptionProxyScheme   OptionNumber = 39
	OptionSize1         OptionNumber = 60
	OptionNoResponse    OptionNumber = 258
)

// Content-Format values for OptionContentFormat and OptionAccept.
const (
	FormatTextPlain   uint32 = 0
	FormatLinkFormat  uint32 = 40
	FormatXML         uint32 = 41
	FormatOctetStream uint32 = 42
	FormatEXI         uint32 = 47
	FormatJSON        uint32 = 50
	FormatCBOR        uint32 = 60
)

// Observe option values on requests.
const (
	ObserveRegister   uint32 = 0
	ObserveDeregister uint32 = 1
)

// NoResponseSuppressAll asks the peer to suppress responses of every class
// (2.xx, 4.xx and 5.xx interest bits all set).
const NoResponseSuppressAll uint32 = 26

// Option is one (number, value) pair.
type Option struct {
	Number OptionNumber
	Value  []byte
}

// Options is an ordered option list. Add and Set keep it sorted ascending
// by number; insertion order is preserved among equal numbers (repeatable
// options such as Uri-Path rely on this).
type Options []Option

// Get returns the value of the first option with the given number.
func (o Options) Get(n OptionNumber) ([]byte, bool) {
	for _, opt := range o {
		if opt.Number == n {
			return opt.Value, true
		}
	}
	return nil, false
}

// GetAll returns the values of every option with the given number, in order.
func (o Options) GetAll(n OptionNumber) [][]byte {
	var vals [][]byte
	for _, opt := range o {
		if opt.Number == n {
			vals = append(vals, opt.Value)
		}
	}
	return vals
}

// Has reports whether an option with the given number is present.
func (o Options) Has(n OptionNumber) bool {
	_, ok := o.Get(n)
	return ok
}

// Add inserts an option, keeping the list sorted ascending and placing the
// new option after any existing options with the same number.
func (o *Options) Add(n OptionNumber, value []byte) {
	opt := Option{Number: n, Value: value}
	i := len(*o)
	for i > 0 && (*o)[i-1].Number > n {
		i--
	}
	*o = append(*o, Option{})
	copy((*o)[i+1:], (*o)[i:])
	(*o)[i] = opt
}

// Set removes every option with the given number and inserts a single one.
func (o *Options) Set(n OptionNumber, value []byte) {
	o.Del(n)
	o.Add(n, value)
}

// Del removes every option with the given number.
func (o *Options) Del(n OptionNumber) {
	kept := (*o)[:0]
	for _, opt := range *o {
		if opt.Number != n {
			kept = append(kept, opt)
		}
	}
	*o = kept
}

// GetUint returns the first value of the option decoded as an unsigned
// integer (big-endian, empty value = 0).
func (o Options) GetUint(n OptionNumber) (uint32, bool) {
	v, ok := o.Get(n)
	if !ok {
		return 0, false
	}
	return uintValue(v), true
}

// AddUint inserts an option with a minimally-encoded unsigned value.
func (o *Options) AddUint(n OptionNumber, v uint32) {
	o.Add(n, uintBytes(v))
}

// SetUint replaces the option with a minimally-encoded unsigned value.
func (o *Options) SetUint(n OptionNumber, v uint32) {
	o.Set(n, uintBytes(v))
}

// Path joins the Uri-Path option values with "/".
func (o Options) Path() string {
	segs := o.GetAll(OptionURIPath)
	if len(segs) == 0 {
		return ""
	}
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = string(s)
	}
	return strings.Join(parts, "/")
}

// SetPath replaces the Uri-Path options with the segments of path.
// Leading and trailing slashes and empty segments are dropped.
func (o *Options) SetPath(path string) {
	o.Del(OptionURIPath)
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		o.Add(OptionURIPath, []byte(seg))
	}
}

// AddQuery appends a Uri-Query option.
func (o *Options) AddQuery(q string) {
	o.Add(OptionURIQuery, []byte(q))
}

// Queries returns the Uri-Query option values.
func (o Options) Queries() []string {
	vals := o.GetAll(OptionURIQuery)
	qs := make([]string, len(vals))
	for i, v := range vals {
		qs[i] = string(v)
	}
	return qs
}

// uintBytes encodes v big-endian with leading zero bytes stripped; zero
// encodes as the empty value.
func uintBytes(v uint32) []byte {
	if v == 0 {
		return nil
	}
	var buf [4]byte
	i := 4
	for v > 0 {
		i--
		buf[i] = byte(v)
		v >>= 8
	}
	return append([]byte(nil), buf[i:]...)
}

// uintValue decodes a big-endian unsigned option value.
func uintValue(b []byte) uint32 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return uint32(v)
}
