package metrics

import (
	"sync"
	"time"

	"github.com/dbehnke/lora-nexus/pkg/lora"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector collects lora-nexus decode metrics
type Collector struct {
	mu sync.RWMutex

	// Packet metrics
	packets  uint64
	rejected uint64
	byConfig map[string]uint64 // key: lora.Config.String()

	// Symbol metrics
	symbols uint64
	masked  uint64
	dropped uint64

	// Codeword metrics
	codewords     uint64
	corrected     uint64
	uncorrectable uint64
	forcedZero    uint64
	forcedOnes    uint64

	nibbles    uint64
	lastDecode time.Time

	latency prometheus.Histogram
}

// Snapshot is a point in time copy of the collector counters
type Snapshot struct {
	Packets        uint64            `json:"packets"`
	Rejected       uint64            `json:"rejected"`
	ByConfig       map[string]uint64 `json:"by_config"`
	Symbols        uint64            `json:"symbols"`
	MaskedSymbols  uint64            `json:"masked_symbols"`
	DroppedSymbols uint64            `json:"dropped_symbols"`
	Codewords      uint64            `json:"codewords"`
	Corrected      uint64            `json:"corrected"`
	Uncorrectable  uint64            `json:"uncorrectable"`
	ForcedZero     uint64            `json:"forced_zero"`
	ForcedOnes     uint64            `json:"forced_ones"`
	Nibbles        uint64            `json:"nibbles"`
	LastDecode     time.Time         `json:"last_decode"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		byConfig: make(map[string]uint64),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_duration_seconds",
			Help:      "Time spent decoding one packet",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
}

// PacketDecoded records one decoded packet
func (c *Collector) PacketDecoded(cfg lora.Config, stats lora.Stats, nibbles int, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.packets++
	c.byConfig[cfg.String()]++

	c.symbols += uint64(stats.Symbols)
	c.masked += uint64(stats.MaskedSymbols)
	c.dropped += uint64(stats.DroppedSymbols)

	c.codewords += uint64(stats.Codewords())
	c.corrected += uint64(stats.Corrected)
	c.uncorrectable += uint64(stats.Uncorrectable)
	c.forcedZero += uint64(stats.ForcedZero)
	c.forcedOnes += uint64(stats.ForcedOnes)

	c.nibbles += uint64(nibbles)
	c.lastDecode = time.Now()

	c.latency.Observe(elapsed.Seconds())
}

// PacketRejected records a capture whose parameters could not build a decoder
func (c *Collector) PacketRejected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rejected++
}

// Reset clears every counter (useful for testing). The latency histogram is
// cumulative and is not reset.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.packets, c.rejected = 0, 0
	c.byConfig = make(map[string]uint64)
	c.symbols, c.masked, c.dropped = 0, 0, 0
	c.codewords, c.corrected, c.uncorrectable = 0, 0, 0
	c.forcedZero, c.forcedOnes = 0, 0
	c.nibbles = 0
	c.lastDecode = time.Time{}
}

// Snapshot returns a copy of the current counters
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byConfig := make(map[string]uint64, len(c.byConfig))
	for k, v := range c.byConfig {
		byConfig[k] = v
	}

	return Snapshot{
		Packets:        c.packets,
		Rejected:       c.rejected,
		ByConfig:       byConfig,
		Symbols:        c.symbols,
		MaskedSymbols:  c.masked,
		DroppedSymbols: c.dropped,
		Codewords:      c.codewords,
		Corrected:      c.corrected,
		Uncorrectable:  c.uncorrectable,
		ForcedZero:     c.forcedZero,
		ForcedOnes:     c.forcedOnes,
		Nibbles:        c.nibbles,
		LastDecode:     c.lastDecode,
	}
}

// GetPackets returns total decoded packets
func (c *Collector) GetPackets() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.packets
}

// GetRejected returns total rejected captures
func (c *Collector) GetRejected() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rejected
}
