package processor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dbehnke/lora-nexus/internal/testhelpers"
	"github.com/dbehnke/lora-nexus/pkg/capture"
	"github.com/dbehnke/lora-nexus/pkg/database"
	"github.com/dbehnke/lora-nexus/pkg/lora"
	"github.com/dbehnke/lora-nexus/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sf7 = lora.Config{SpreadingFactor: 7, CodeRate: 4, Header: true}

type decodeNote struct {
	id, name string
	cfg      lora.Config
	nibbles  int
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []decodeNote
}

func (n *recordingNotifier) BroadcastDecode(id, name string, cfg lora.Config, _ lora.Stats, nibbles int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, decodeNote{id, name, cfg, nibbles})
}

func TestProcess_DecodesAndFansOut(t *testing.T) {
	suite := testhelpers.NewSuite(t)
	repo := database.NewDecodeRepository(suite.OpenDB().GetDB())
	collector := metrics.NewCollector()
	notifier := &recordingNotifier{}

	p := New(sf7, suite.Logger)
	p.SetMetrics(collector)
	p.SetRepository(repo)
	p.SetNotifier(notifier)

	header := []byte{0x3, 0x0, 0x9, 0x1, 0x2}
	payload := []byte{0x2, 0x4, 0x8, 0x6, 0x9, 0x2, 0x1}
	c := suite.Capture("beacon", sf7, header, payload)

	res, err := p.Process(suite.Ctx, c)
	require.NoError(t, err)

	assert.Equal(t, append(append([]byte{}, header...), payload...), res.Nibbles)
	assert.Equal(t, sf7, res.Config)
	assert.Equal(t, "beacon", res.Name)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 16, res.Stats.Symbols)
	assert.Zero(t, res.Stats.Uncorrectable)
	assert.Nil(t, res.Packed)

	assert.Equal(t, uint64(1), collector.GetPackets())
	assert.Equal(t, uint64(12), collector.Snapshot().Nibbles)

	rec, err := repo.GetByUUID(suite.Ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "309122486921", rec.Nibbles)
	assert.Equal(t, 7, rec.SpreadingFactor)
	assert.Equal(t, 12, rec.Codewords)

	require.Len(t, notifier.notes, 1)
	assert.Equal(t, decodeNote{res.ID, "beacon", sf7, 12}, notifier.notes[0])
}

func TestProcess_UsesDefaultsForUnsetParameters(t *testing.T) {
	suite := testhelpers.NewSuite(t)
	def := lora.Config{SpreadingFactor: 9, CodeRate: 2, Header: false}
	p := New(def, suite.Logger)

	header := []byte{1, 2, 3, 4, 5, 6, 7}
	payload := []byte{8, 9, 10, 11, 12, 13, 14, 15, 0}
	c := &capture.Capture{Name: "bare", Symbols: suite.Encode(def, header, payload)}

	res, err := p.Process(suite.Ctx, c)
	require.NoError(t, err)
	assert.Equal(t, def, res.Config)
	assert.Equal(t, append(append([]byte{}, header...), payload...), res.Nibbles)
	assert.Zero(t, res.Stats.DroppedSymbols)
}

func TestProcess_ShortCapture(t *testing.T) {
	suite := testhelpers.NewSuite(t)
	p := New(sf7, suite.Logger)

	res, err := p.Process(suite.Ctx, &capture.Capture{Name: "short", Symbols: []uint16{1, 2, 3}})
	require.NoError(t, err)
	assert.Empty(t, res.Nibbles)
	assert.Equal(t, 3, res.Stats.DroppedSymbols)
}

func TestProcess_RejectsInvalidConfig(t *testing.T) {
	suite := testhelpers.NewSuite(t)
	collector := metrics.NewCollector()
	p := New(sf7, suite.Logger)
	p.SetMetrics(collector)

	explicit := true
	c := &capture.Capture{Name: "bad", SpreadingFactor: 6, Header: &explicit, Symbols: []uint16{1, 2, 3}}

	res, err := p.Process(suite.Ctx, c)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, lora.ErrImplicitHeaderOnly), "got %v", err)
	assert.True(t, errors.Is(err, lora.ErrInvalidConfig))
	assert.Equal(t, uint64(1), collector.GetRejected())
	assert.Zero(t, collector.GetPackets())
}

func TestProcess_CancelledContext(t *testing.T) {
	suite := testhelpers.NewSuite(t)
	p := New(sf7, suite.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, &capture.Capture{Symbols: []uint16{1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_Pack(t *testing.T) {
	suite := testhelpers.NewSuite(t)
	p := New(sf7, suite.Logger)
	p.SetPack(true)

	c := suite.Capture("packed", sf7, []byte{0xA, 0xB, 0xC, 0xD, 0xE}, nil)
	res, err := p.Process(suite.Ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA, 0xB, 0xC, 0xD, 0xE}, res.Nibbles)
	assert.Equal(t, []byte{0xAB, 0xCD, 0xE0}, res.Packed)
}

func TestProcess_CorrectsNoise(t *testing.T) {
	suite := testhelpers.NewSuite(t)
	cfg := lora.Config{SpreadingFactor: 8, CodeRate: 4, Header: true}
	p := New(cfg, suite.Logger)

	header := []byte{1, 2, 3, 4, 5, 6}
	payload := []byte{7, 8, 9, 10, 11, 12, 13, 14}
	c := suite.Capture("noisy", cfg, header, payload)

	// Bit 0 of the second payload symbol lands in one data bit of one
	// codeword after deinterleaving, where CR 4/8 repairs it.
	clean, err := p.Process(suite.Ctx, c)
	require.NoError(t, err)
	require.Equal(t, append(append([]byte{}, header...), payload...), clean.Nibbles)

	c.Symbols = testhelpers.FlipBits(c.Symbols, [2]int{9, 0})
	noisy, err := p.Process(suite.Ctx, c)
	require.NoError(t, err)
	assert.Equal(t, clean.Nibbles, noisy.Nibbles)
	assert.Equal(t, 1, noisy.Stats.Corrected)
}

func TestDecoder_Cached(t *testing.T) {
	p := New(sf7, nil)

	a, err := p.Decoder(sf7)
	require.NoError(t, err)
	b, err := p.Decoder(sf7)
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := p.Decoder(lora.Config{SpreadingFactor: 8, CodeRate: 1})
	require.NoError(t, err)
	assert.NotSame(t, a, other)

	_, err = p.Decoder(lora.Config{SpreadingFactor: 13, CodeRate: 1})
	assert.ErrorIs(t, err, lora.ErrInvalidSpreadingFactor)
}

func TestProcess_Concurrent(t *testing.T) {
	suite := testhelpers.NewSuite(t)
	collector := metrics.NewCollector()
	p := New(sf7, suite.Logger)
	p.SetMetrics(collector)

	configs := []lora.Config{
		sf7,
		{SpreadingFactor: 8, CodeRate: 2, Header: true},
		{SpreadingFactor: 10, CodeRate: 1, Header: false},
	}
	captures := make([]*capture.Capture, len(configs))
	for i, cfg := range configs {
		captures[i] = suite.Capture("c", cfg, []byte{1, 2, 3, 4, 5}, []byte{6, 7, 8})
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_, err := p.Process(suite.Ctx, captures[i%len(captures)])
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(160), collector.GetPackets())
	assert.Len(t, collector.Snapshot().ByConfig, 3)
}

func TestProcessAll_StopsAtFirstError(t *testing.T) {
	suite := testhelpers.NewSuite(t)
	p := New(sf7, suite.Logger)

	good := suite.Capture("good", sf7, []byte{1}, nil)
	bad := &capture.Capture{Name: "bad", CodeRate: 9}

	results, err := p.ProcessAll(suite.Ctx, []*capture.Capture{good, bad, good})
	assert.ErrorIs(t, err, lora.ErrInvalidCodeRate)
	assert.Len(t, results, 1)
}

func TestNibbleHex(t *testing.T) {
	assert.Equal(t, "", NibbleHex(nil))
	assert.Equal(t, "1a3", NibbleHex([]byte{0x1, 0xA, 0x3}))
	assert.Equal(t, "f0", NibbleHex([]byte{0xF, 0x0}))
}
