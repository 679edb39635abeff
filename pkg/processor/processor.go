// Package processor runs captures through the LoRa decoder and fans the
// outcome out to metrics, decode history and live listeners.
package processor

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/dbehnke/lora-nexus/pkg/capture"
	"github.com/dbehnke/lora-nexus/pkg/database"
	"github.com/dbehnke/lora-nexus/pkg/logger"
	"github.com/dbehnke/lora-nexus/pkg/lora"
	"github.com/dbehnke/lora-nexus/pkg/metrics"
	"github.com/google/uuid"
)

// Notifier is told about every finished decode. The web hub implements it.
type Notifier interface {
	BroadcastDecode(id, name string, cfg lora.Config, stats lora.Stats, nibbles int)
}

// Result is the outcome of decoding one capture
type Result struct {
	ID        string        `json:"id" yaml:"id"`
	Name      string        `json:"name" yaml:"name"`
	Source    string        `json:"source,omitempty" yaml:"source,omitempty"`
	Config    lora.Config   `json:"config" yaml:"config"`
	Nibbles   []byte        `json:"nibbles" yaml:"nibbles"`
	Packed    []byte        `json:"packed,omitempty" yaml:"packed,omitempty"`
	Stats     lora.Stats    `json:"stats" yaml:"stats"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	DecodedAt time.Time     `json:"decoded_at" yaml:"decoded_at"`
}

// Processor decodes captures. Decoders are built once per distinct
// configuration and shared; a Processor is safe for concurrent use.
type Processor struct {
	defaults lora.Config
	pack     bool
	log      *logger.Logger

	collector *metrics.Collector
	repo      *database.DecodeRepository
	notifier  Notifier

	mu       sync.Mutex
	decoders map[lora.Config]*lora.Decoder
}

// New creates a processor. Captures that leave parameters unset use defaults.
func New(defaults lora.Config, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	return &Processor{
		defaults: defaults,
		log:      log.WithComponent("processor"),
		decoders: make(map[lora.Config]*lora.Decoder),
	}
}

// SetMetrics attaches a metrics collector
func (p *Processor) SetMetrics(c *metrics.Collector) { p.collector = c }

// SetRepository attaches a decode history store
func (p *Processor) SetRepository(r *database.DecodeRepository) { p.repo = r }

// SetNotifier attaches a live decode listener
func (p *Processor) SetNotifier(n Notifier) { p.notifier = n }

// SetPack makes results carry the nibbles packed two per byte as well
func (p *Processor) SetPack(pack bool) { p.pack = pack }

// Defaults returns the configuration used for unset capture parameters
func (p *Processor) Defaults() lora.Config { return p.defaults }

// Decoder returns the shared decoder for cfg, building it on first use
func (p *Processor) Decoder(cfg lora.Config) (*lora.Decoder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if d, ok := p.decoders[cfg]; ok {
		return d, nil
	}
	d, err := lora.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	p.decoders[cfg] = d
	p.log.Debug("Decoder created", logger.String("config", cfg.String()))
	return d, nil
}

// Process decodes one capture. The only errors are an invalid capture
// configuration, a cancelled context and a failure to persist the result.
func (p *Processor) Process(ctx context.Context, c *capture.Capture) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := c.Resolve(p.defaults)
	dec, err := p.Decoder(cfg)
	if err != nil {
		if p.collector != nil {
			p.collector.PacketRejected()
		}
		p.log.Warn("Capture rejected",
			logger.String("name", c.Name),
			logger.String("config", cfg.String()),
			logger.Error(err))
		return nil, fmt.Errorf("capture %s: %w", c.Name, err)
	}

	start := time.Now()
	nibbles, stats := dec.DecodeWithStats(c.Symbols)
	elapsed := time.Since(start)

	res := &Result{
		ID:        uuid.NewString(),
		Name:      c.Name,
		Source:    c.Source,
		Config:    cfg,
		Nibbles:   nibbles,
		Stats:     stats,
		Duration:  elapsed,
		DecodedAt: start,
	}
	if p.pack {
		res.Packed = lora.PackNibbles(nibbles)
	}

	p.log.Debug("Capture decoded",
		logger.String("name", c.Name),
		logger.String("config", cfg.String()),
		logger.Int("symbols", stats.Symbols),
		logger.Int("nibbles", len(nibbles)),
		logger.Int("corrected", stats.Corrected),
		logger.Int("uncorrectable", stats.Uncorrectable))
	if stats.MaskedSymbols > 0 || stats.DroppedSymbols > 0 {
		p.log.Warn("Capture symbols discarded",
			logger.String("name", c.Name),
			logger.Int("masked", stats.MaskedSymbols),
			logger.Int("dropped", stats.DroppedSymbols))
	}

	if p.collector != nil {
		p.collector.PacketDecoded(cfg, stats, len(nibbles), elapsed)
	}

	if p.repo != nil {
		if err := p.repo.Create(ctx, record(res)); err != nil {
			return res, fmt.Errorf("failed to store decode %s: %w", res.ID, err)
		}
	}

	if p.notifier != nil {
		p.notifier.BroadcastDecode(res.ID, res.Name, cfg, stats, len(nibbles))
	}

	return res, nil
}

// ProcessAll decodes captures in order, stopping at the first error
func (p *Processor) ProcessAll(ctx context.Context, captures []*capture.Capture) ([]*Result, error) {
	results := make([]*Result, 0, len(captures))
	for _, c := range captures {
		res, err := p.Process(ctx, c)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// NibbleHex renders nibbles as one hex digit each
func NibbleHex(nibbles []byte) string {
	return hex.EncodeToString(lora.PackNibbles(nibbles))[:len(nibbles)]
}

func record(res *Result) *database.DecodeRecord {
	return &database.DecodeRecord{
		UUID:            res.ID,
		Name:            res.Name,
		Source:          res.Source,
		SpreadingFactor: res.Config.SpreadingFactor,
		CodeRate:        res.Config.CodeRate,
		Header:          res.Config.Header,
		SymbolCount:     res.Stats.Symbols,
		Nibbles:         NibbleHex(res.Nibbles),
		MaskedSymbols:   res.Stats.MaskedSymbols,
		DroppedSymbols:  res.Stats.DroppedSymbols,
		Codewords:       res.Stats.Codewords(),
		Corrected:       res.Stats.Corrected,
		Uncorrectable:   res.Stats.Uncorrectable,
		ForcedZero:      res.Stats.ForcedZero,
		ForcedOnes:      res.Stats.ForcedOnes,
		DurationMicros:  res.Duration.Microseconds(),
		DecodedAt:       res.DecodedAt,
	}
}
