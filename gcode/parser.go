package gcode

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrSyntax is returned for lines that are not a sequence of words.
var ErrSyntax = errors.New("invalid or unhandled line")

// Parser reads blocks from g-code text, one block per line. Comments and
// blank lines are skipped.
type Parser struct {
	br   *bufio.Reader
	line int
}

func NewParser(r io.Reader) *Parser {
	if br, ok := r.(*bufio.Reader); ok {
		return &Parser{br: br}
	}

	return &Parser{br: bufio.NewReader(r)}
}

var (
	rx      = regexp.MustCompile(`^([A-Z][0-9.\-]+)+$`)
	rxSplit = regexp.MustCompile(`[A-Z][0-9.\-]+`)
)

// stripComments removes ; and (...) comments and program delimiters.
func stripComments(s string) (string, error) {
	s = strings.SplitN(s, ";", 2)[0]

	var b strings.Builder
	depth := 0
	for _, c := range s {
		switch {
		case c == '(':
			depth++
		case c == ')':
			if depth == 0 {
				return "", fmt.Errorf("%w: unmatched ')'", ErrSyntax)
			}
			depth--
		case depth > 0, c == '%':
		default:
			b.WriteRune(c)
		}
	}
	if depth > 0 {
		return "", fmt.Errorf("%w: unterminated comment", ErrSyntax)
	}
	return b.String(), nil
}

// Read returns the next block. Syntax errors carry the line number they
// were found on.
func (p *Parser) Read() (ln Block, err error) {
	for {
		s, err := p.br.ReadString('\n')
		if err == io.EOF && s != "" {
			err = nil
		}
		if err != nil {
			return nil, err
		}
		p.line++

		s, err = stripComments(s)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", p.line, err)
		}
		s = strings.Replace(s, " ", "", -1)
		s = strings.TrimSpace(s)
		s = strings.ToUpper(s)

		if s == "" {
			continue
		}

		if !rx.MatchString(s) {
			return nil, fmt.Errorf("line %d: %w: %s", p.line, ErrSyntax, s)
		}

		codes := rxSplit.FindAllString(s, -1)
		res := make([]Word, len(codes))

		for i, c := range codes {
			_, err = fmt.Sscanf(c, "%c%f", &res[i].W, &res[i].Arg)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w: %s", p.line, ErrSyntax, c)
			}
		}

		return res, nil
	}
}

// Parse reads every block of a program or operator input. Nothing is
// returned if any line fails to parse.
func Parse(data string) ([]Block, error) {
	p := NewParser(bytes.NewBufferString(data))
	var blocks []Block
	for {
		b, err := p.Read()
		if err == io.EOF {
			return blocks, nil
		}
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
}

// MustParse is Parse that panics on error, for fixed programs built in code.
func MustParse(data string) []Block {
	b, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return b
}
