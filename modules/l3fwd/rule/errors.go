package rule

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRule is returned when a rule does not have the
	// "ip/depth,mac,port" shape.
	ErrMalformedRule = errors.New("malformed rule")
	// ErrInvalidAddress is returned for addresses that are not four decimal
	// octets in [0,255].
	ErrInvalidAddress = errors.New("invalid IPv4 address")
	// ErrInvalidDepth is returned for prefix lengths that are not a number
	// in [0,32].
	ErrInvalidDepth = errors.New("invalid prefix depth")
	// ErrInvalidMACAddress is returned for malformed next-hop MAC addresses.
	ErrInvalidMACAddress = errors.New("invalid MAC address")
	// ErrInvalidPort is returned when the egress port index is not a
	// non-negative 16-bit number.
	ErrInvalidPort = errors.New("invalid egress port")
	// ErrUnknownPort is returned when no local port exists at the egress
	// port index.
	ErrUnknownPort = errors.New("unknown egress port")
)

// LineError attributes a parse error to a line of a text rule source.
type LineError struct {
	// Origin names the source, such as a file path.
	Origin string
	// Line is the 1-based line number.
	Line int
	// Text is the offending line.
	Text string
	Err  error
}

func (m *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %q: %v", m.Origin, m.Line, m.Text, m.Err)
}

func (m *LineError) Unwrap() error {
	return m.Err
}
