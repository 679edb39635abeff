// Package capture reads demodulated symbol captures from disk.
//
// Two formats are understood. A YAML capture carries its own modulation
// parameters:
//
//	name: beacon
//	spreading_factor: 7
//	code_rate: 4
//	header: true
//	symbols: [82, 38, 101, 12]
//
// A text capture is a bare list of symbol values, decimal or 0x hex,
// separated by whitespace or commas. Anything after # on a line is ignored.
package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dbehnke/lora-nexus/pkg/lora"
	"gopkg.in/yaml.v3"
)

// Format selects the capture file syntax
type Format string

const (
	FormatAuto Format = "auto"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

var (
	// ErrUnknownFormat is returned for a format name other than auto, yaml or text
	ErrUnknownFormat = errors.New("unknown capture format")
	// ErrEmpty is returned when a capture holds no document at all
	ErrEmpty = errors.New("empty capture")
)

// ParseFormat converts a configuration string into a Format
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatYAML, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// DetectFormat picks a format from a file name
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatText
	}
}

// Capture is one packet worth of symbols plus optional modulation parameters.
// Zero SpreadingFactor or CodeRate and a nil Header mean "use the default".
type Capture struct {
	Name            string   `yaml:"name,omitempty"`
	SpreadingFactor int      `yaml:"spreading_factor,omitempty"`
	CodeRate        int      `yaml:"code_rate,omitempty"`
	Header          *bool    `yaml:"header,omitempty"`
	Symbols         []uint16 `yaml:"symbols"`

	// Source is the path the capture was loaded from, if any
	Source string `yaml:"-"`
}

// Resolve fills the parameters the capture leaves unset from def
func (c *Capture) Resolve(def lora.Config) lora.Config {
	cfg := def
	if c.SpreadingFactor != 0 {
		cfg.SpreadingFactor = c.SpreadingFactor
	}
	if c.CodeRate != 0 {
		cfg.CodeRate = c.CodeRate
	}
	if c.Header != nil {
		cfg.Header = *c.Header
	}
	return cfg
}

// Load reads the capture at path. With FormatAuto the extension decides.
func Load(path string, format Format) (*Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	defer func() { _ = f.Close() }()

	if format == FormatAuto || format == "" {
		format = DetectFormat(path)
	}

	c, err := Parse(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Source = path
	if c.Name == "" {
		c.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return c, nil
}

// Parse reads a capture from r. With FormatAuto the content decides: a
// document with a symbols key is YAML, anything else is text.
func Parse(r io.Reader, format Format) (*Capture, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}

	if format == FormatAuto || format == "" {
		format = sniff(data)
	}

	switch format {
	case FormatYAML:
		return parseYAML(data)
	case FormatText:
		return parseText(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func sniff(data []byte) Format {
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimSpace(line), []byte("symbols:")) {
			return FormatYAML
		}
	}
	return FormatText
}

func parseYAML(data []byte) (*Capture, error) {
	var c Capture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("failed to parse yaml capture: %w", err)
	}
	return &c, nil
}

func parseText(data []byte) (*Capture, error) {
	c := &Capture{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\r'
		})
		for _, tok := range fields {
			v, err := parseSymbol(tok)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			c.Symbols = append(c.Symbols, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan text capture: %w", err)
	}
	return c, nil
}

func parseSymbol(tok string) (uint16, error) {
	base := 10
	digits := tok
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		base = 16
		digits = tok[2:]
	}
	v, err := strconv.ParseUint(digits, base, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid symbol %q: %w", tok, err)
	}
	return uint16(v), nil
}
