package message

import "fmt"

// Code is the message code: 0 for empty control messages, a request method
// (class 0), or a response status (classes 2, 4, 5). The wire form packs
// the class into the upper 3 bits and the detail into the lower 5, so the
// conventional dotted notation c.dd maps to Code(c<<5 | dd).
type Code uint8

// Request method codes.
const (
	CodeEmpty Code = 0
	GET       Code = 1
	POST      Code = 2
	PUT       Code = 3
	DELETE    Code = 4
)

// Success response codes (class 2).
const (
	Created  Code = 0x41 // 2.01
	Deleted  Code = 0x42 // 2.02
	Valid    Code = 0x43 // 2.03
	Changed  Code = 0x44 // 2.04
	Content  Code = 0x45 // 2.05
	Continue Code = 0x5F // 2.31
)

// Client error response codes (class 4).
const (
	BadRequest               Code = 0x80 // 4.00
	Unauthorized             Code = 0x81 // 4.01
	BadOption                Code = 0x82 // 4.02
	Forbidden                Code = 0x83 // 4.03
	NotFound                 Code = 0x84 // 4.04
	MethodNotAllowed         Code = 0x85 // 4.05
	NotAcceptable            Code = 0x86 // 4.06
	RequestEntityIncomplete  Code = 0x88 // 4.08
	PreconditionFailed       Code = 0x8C // 4.12
	RequestEntityTooLarge    Code = 0x8D // 4.13
	UnsupportedContentFormat Code = 0x8F // 4.15
)

// Server error response codes (class 5).
const (
	InternalServerError  Code = 0xA0 // 5.00
	NotImplemented       Code = 0xA1 // 5.01
	BadGateway           Code = 0xA2 // 5.02
	ServiceUnavailable   Code = 0xA3 // 5.03
	GatewayTimeout       Code = 0xA4 // 5.04
	ProxyingNotSupported Code = 0xA5 // 5.05
)

// Class returns the upper 3 bits (0 request, 2 success, 4/5 error).
func (c Code) Class() uint8 {
	return uint8(c) >> 5
}

// Detail returns the lower 5 bits.
func (c Code) Detail() uint8 {
	return uint8(c) & 0x1F
}

// IsRequest reports whether the code is a request method.
func (c Code) IsRequest() bool {
	return c != CodeEmpty && c.Class() == 0
}

// IsResponse reports whether the code is a response status.
func (c Code) IsResponse() bool {
	cl := c.Class()
	return cl == 2 || cl == 4 || cl == 5
}

// IsSuccess reports whether the code is a 2.xx response.
func (c Code) IsSuccess() bool {
	return c.Class() == 2
}

// IsError reports whether the code is a 4.xx or 5.xx response.
func (c Code) IsError() bool {
	cl := c.Class()
	return cl == 4 || cl == 5
}

var codeNames = map[Code]string{
	CodeEmpty:                "Empty",
	GET:                      "GET",
	POST:                     "POST",
	PUT:                      "PUT",
	DELETE:                   "DELETE",
	Created:                  "Created",
	Deleted:                  "Deleted",
	Valid:                    "Valid",
	Changed:                  "Changed",
	Content:                  "Content",
	Continue:                 "Continue",
	BadRequest:               "Bad Request",
	Unauthorized:             "Unauthorized",
	BadOption:                "Bad Option",
	Forbidden:                "Forbidden",
	NotFound:                 "Not Found",
	MethodNotAllowed:         "Method Not Allowed",
	NotAcceptable:            "Not Acceptable",
	RequestEntityIncomplete:  "Request Entity Incomplete",
	PreconditionFailed:       "Precondition Failed",
	RequestEntityTooLarge:    "Request Entity Too Large",
	UnsupportedContentFormat: "Unsupported Content-Format",
	InternalServerError:      "Internal Server Error",
	NotImplemented:           "Not Implemented",
	BadGateway:               "Bad Gateway",
	ServiceUnavailable:       "Service Unavailable",
	GatewayTimeout:           "Gateway Timeout",
	ProxyingNotSupported:     "Proxying Not Supported",
}

// String returns the method name for requests and the dotted form with the
// registered name for responses, e.g. "GET" or "2.05 Content".
func (c Code) String() string {
	if c.Class() == 0 {
		if name, ok := codeNames[c]; ok {
			return name
		}
		return fmt.Sprintf("0.%02d", c.Detail())
	}
	if name, ok := codeNames[c]; ok {
		return fmt.Sprintf("%d.%02d %s", c.Class(), c.Detail(), name)
	}
	return fmt.Sprintf("%d.%02d", c.Class(), c.Detail())
}
