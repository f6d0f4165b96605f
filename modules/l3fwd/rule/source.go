package rule

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"net/netip"
	"os"
	"slices"
	"strings"

	"github.com/c2h5oh/datasize"

	"github.com/yanet-platform/l3fwd/common/go/xiter"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/nexthop"
)

// Source provides rules in order.
type Source interface {
	// Rules yields rules one by one. A non-nil error ends the sequence.
	Rules() iter.Seq2[Rule, error]
}

// TextSource parses text rules.
//
// Blank lines and lines starting with "#" are skipped.
type TextSource struct {
	origin string
	lines  []string
}

// Lines returns a source over in-memory text rules.
func Lines(lines ...string) *TextSource {
	return &TextSource{origin: "rules", lines: lines}
}

// NewTextSource returns a source over text rules, attributing errors to
// origin.
func NewTextSource(origin string, lines []string) *TextSource {
	return &TextSource{origin: origin, lines: lines}
}

// Rules implements Source.
func (m *TextSource) Rules() iter.Seq2[Rule, error] {
	return parseLines(m.origin, xiter.EnumerateFrom(slices.Values(m.lines), 1))
}

// Len returns the number of lines, including skipped ones.
func (m *TextSource) Len() int {
	return len(m.lines)
}

// ReaderSource parses text rules from a stream.
//
// The stream is consumed by the first iteration.
type ReaderSource struct {
	origin string
	r      io.Reader
}

// NewReaderSource returns a source reading text rules from r.
func NewReaderSource(origin string, r io.Reader) *ReaderSource {
	return &ReaderSource{origin: origin, r: r}
}

// Rules implements Source.
func (m *ReaderSource) Rules() iter.Seq2[Rule, error] {
	return func(yield func(Rule, error) bool) {
		scanner := bufio.NewScanner(m.r)

		var lines iter.Seq[string] = func(yield func(string) bool) {
			for scanner.Scan() {
				if !yield(scanner.Text()) {
					return
				}
			}
		}

		for r, err := range parseLines(m.origin, xiter.EnumerateFrom(lines, 1)) {
			if !yield(r, err) || err != nil {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(Rule{}, fmt.Errorf("failed to read %s: %w", m.origin, err))
		}
	}
}

// LoadFile reads a rules file into memory.
//
// Files larger than maxSize are rejected; zero disables the limit.
func LoadFile(path string, maxSize datasize.ByteSize) (*TextSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if maxSize > 0 {
		r = io.LimitReader(f, int64(maxSize.Bytes())+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	if maxSize > 0 && uint64(len(data)) > maxSize.Bytes() {
		return nil, fmt.Errorf("rules file %s exceeds %s", path, maxSize.HR())
	}

	return NewTextSource(path, strings.Split(string(data), "\n")), nil
}

func parseLines(origin string, lines iter.Seq2[int, string]) iter.Seq2[Rule, error] {
	return func(yield func(Rule, error) bool) {
		for lineNo, line := range lines {
			text := strings.TrimSpace(line)
			if text == "" || strings.HasPrefix(text, "#") {
				continue
			}

			r, err := ParseLine(text)
			if err != nil {
				yield(Rule{}, &LineError{Origin: origin, Line: lineNo, Text: text, Err: err})
				return
			}
			r.Origin = fmt.Sprintf("%s:%d", origin, lineNo)

			if !yield(r, nil) {
				return
			}
		}
	}
}

// Static is a source over already structured rules.
type Static []Rule

// Rules implements Source.
func (m Static) Rules() iter.Seq2[Rule, error] {
	return func(yield func(Rule, error) bool) {
		for idx, r := range m {
			if r.Origin == "" {
				r.Origin = fmt.Sprintf("static rule #%d", idx)
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Concat chains sources, in order.
func Concat(sources ...Source) Source {
	return concat(sources)
}

type concat []Source

func (m concat) Rules() iter.Seq2[Rule, error] {
	return func(yield func(Rule, error) bool) {
		for _, src := range m {
			for r, err := range src.Rules() {
				if !yield(r, err) || err != nil {
					return
				}
			}
		}
	}
}

// Builtin returns the compiled-in rule set: the RFC 2544 benchmark range
// 198.18.0.0/15 spread over four ports.
func Builtin() Static {
	return Static{
		{Addr: netip.AddrFrom4([4]byte{198, 18, 0, 0}), Depth: 24, MAC: nexthop.MAC{0x02, 0, 0, 0, 0, 0x01}, PortIndex: 0},
		{Addr: netip.AddrFrom4([4]byte{198, 18, 1, 0}), Depth: 24, MAC: nexthop.MAC{0x02, 0, 0, 0, 0, 0x02}, PortIndex: 1},
		{Addr: netip.AddrFrom4([4]byte{198, 18, 2, 0}), Depth: 24, MAC: nexthop.MAC{0x02, 0, 0, 0, 0, 0x03}, PortIndex: 2},
		{Addr: netip.AddrFrom4([4]byte{198, 18, 3, 0}), Depth: 24, MAC: nexthop.MAC{0x02, 0, 0, 0, 0, 0x04}, PortIndex: 3},
		{Addr: netip.AddrFrom4([4]byte{198, 19, 0, 0}), Depth: 16, MAC: nexthop.MAC{0x02, 0, 0, 0, 0, 0x05}, PortIndex: 0},
	}
}
