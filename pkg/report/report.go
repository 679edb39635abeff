// Package report renders decode results for humans and for other tools.
package report

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dbehnke/lora-nexus/pkg/lora"
	"github.com/dbehnke/lora-nexus/pkg/processor"
	"gopkg.in/yaml.v3"
)

// Format selects how results are rendered
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for a format name that is not text, json or yaml
var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat converts a format name, as found in config, into a Format
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Entry is the serialized view of one result. Nibbles are hex digits, one per
// nibble, so the output matches what the text report and the history store show.
type Entry struct {
	ID        string      `json:"id" yaml:"id"`
	Name      string      `json:"name" yaml:"name"`
	Source    string      `json:"source,omitempty" yaml:"source,omitempty"`
	Config    string      `json:"config" yaml:"config"`
	Params    lora.Config `json:"params" yaml:"params"`
	Nibbles   string      `json:"nibbles" yaml:"nibbles"`
	Count     int         `json:"nibble_count" yaml:"nibble_count"`
	Packed    string      `json:"packed,omitempty" yaml:"packed,omitempty"`
	Stats     lora.Stats  `json:"stats" yaml:"stats"`
	Duration  string      `json:"duration" yaml:"duration"`
	DecodedAt time.Time   `json:"decoded_at" yaml:"decoded_at"`
}

// NewEntry builds the serialized view of res
func NewEntry(res *processor.Result) Entry {
	e := Entry{
		ID:        res.ID,
		Name:      res.Name,
		Source:    res.Source,
		Config:    res.Config.String(),
		Params:    res.Config,
		Nibbles:   processor.NibbleHex(res.Nibbles),
		Count:     len(res.Nibbles),
		Stats:     res.Stats,
		Duration:  res.Duration.String(),
		DecodedAt: res.DecodedAt,
	}
	if res.Packed != nil {
		e.Packed = hex.EncodeToString(res.Packed)
	}
	return e
}

// Write renders results to w in the given format
func Write(w io.Writer, format Format, results []*processor.Result) error {
	entries := make([]Entry, len(results))
	for i, r := range results {
		entries[i] = NewEntry(r)
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("failed to encode json report: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("failed to encode yaml report: %w", err)
		}
		return enc.Close()
	case FormatText, "":
		for i := range entries {
			if i > 0 {
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}
			if err := writeText(w, &entries[i]); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func writeText(w io.Writer, e *Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.Config)
	if e.Source != "" {
		fmt.Fprintf(tw, "  source\t%s\n", e.Source)
	}
	fmt.Fprintf(tw, "  nibbles\t%s (%d)\n", orDash(e.Nibbles), e.Count)
	if e.Packed != "" {
		fmt.Fprintf(tw, "  packed\t%s\n", e.Packed)
	}
	s := e.Stats
	fmt.Fprintf(tw, "  symbols\t%d in, %d masked, %d dropped\n", s.Symbols, s.MaskedSymbols, s.DroppedSymbols)
	fmt.Fprintf(tw, "  codewords\t%d header, %d payload\n", s.HeaderCodewords, s.PayloadCodewords)
	fmt.Fprintf(tw, "  hamming\t%d corrected, %d uncorrectable, %d forced zero, %d forced ones\n",
		s.Corrected, s.Uncorrectable, s.ForcedZero, s.ForcedOnes)
	fmt.Fprintf(tw, "  took\t%s\n", e.Duration)

	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
