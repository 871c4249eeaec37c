// Package harness constructs and runs an ensemble of simulated sequencers
// against one coordinator endpoint.
package harness

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/compose-network/sequencer-sim/internal/sequencer"
)

// chainPool is the fixed pool of chain identifiers handed out in participant
// order, matching the default chain set named in originated proposals.
var chainPool = [][]byte{
	{0x12, 0x34},
	{0x13, 0x35},
	{0x14, 0x36},
}

// Config describes one simulation run.
type Config struct {
	Clients     int
	Coordinator string // host:port dial address
	Strategy    sequencer.Policy
	// Overrides replaces the uniform strategy for individual participants,
	// keyed by zero-based index.
	Overrides map[int]sequencer.Policy

	// SendTx makes the first participant originate TxCount proposals.
	SendTx  bool
	TxCount int

	Duration time.Duration
	// Stagger spaces out connection attempts.
	Stagger time.Duration
	// StopWait bounds how long shutdown waits for each receive loop
	// before abandoning it.
	StopWait time.Duration

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Delays         sequencer.Delays

	// OriginateDelay fixes the pause before each originated proposal;
	// zero draws 1-3s per proposal.
	OriginateDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.TxCount < 1 {
		c.TxCount = 1
	}
	if c.Stagger <= 0 {
		c.Stagger = 500 * time.Millisecond
	}
	if c.StopWait <= 0 {
		c.StopWait = 2 * time.Second
	}
}

// Harness owns the participant ensemble for one run.
type Harness struct {
	cfg  Config
	log  zerolog.Logger
	rng  *rand.Rand
	seqs []*sequencer.Sequencer
}

// New creates a harness for the given run configuration.
func New(cfg Config, log zerolog.Logger) *Harness {
	cfg.applyDefaults()

	return &Harness{
		cfg: cfg,
		log: log.With().Str("component", "harness").Logger(),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Participants returns the participants that connected successfully.
func (h *Harness) Participants() []*sequencer.Sequencer {
	return h.seqs
}

// Run connects the ensemble with staggered starts, lets it participate in
// the protocol for the configured duration (or until ctx is cancelled),
// then stops and joins every participant. A single participant's connection
// failure is logged and skipped; only a fully failed ensemble is an error.
func (h *Harness) Run(ctx context.Context) error {
	defer h.stopAll()

	for i := 0; i < h.cfg.Clients; i++ {
		seq := sequencer.New(h.participantConfig(i), h.log)

		if err := seq.Connect(ctx); err != nil {
			h.log.Error().Err(err).Str("client_id", seq.ClientID()).Msg("Participant failed to connect")
		} else {
			h.seqs = append(h.seqs, seq)
			go seq.Run(ctx)

			if i == 0 && h.cfg.SendTx {
				go h.originate(seq)
			}
		}

		if i < h.cfg.Clients-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.cfg.Stagger):
			}
		}
	}

	if len(h.seqs) == 0 {
		return ErrNoParticipants
	}

	h.log.Info().
		Int("participants", len(h.seqs)).
		Dur("duration", h.cfg.Duration).
		Msg("Ensemble running")

	timer := time.NewTimer(h.cfg.Duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	return nil
}

func (h *Harness) participantConfig(i int) sequencer.Config {
	strategy := h.cfg.Strategy
	if override, ok := h.cfg.Overrides[i]; ok {
		strategy = override
	}

	return sequencer.Config{
		ClientID:        clientIDFor(i),
		ChainID:         chainIDFor(i),
		CoordinatorAddr: h.cfg.Coordinator,
		Strategy:        strategy,
		ConnectTimeout:  h.cfg.ConnectTimeout,
		ReadTimeout:     h.cfg.ReadTimeout,
		Delays:          h.cfg.Delays,
	}
}

// originate sends the configured number of proposals from the designated
// initiator, pausing before each one the way a live sequencer batches.
func (h *Harness) originate(seq *sequencer.Sequencer) {
	for i := 0; i < h.cfg.TxCount; i++ {
		delay := h.cfg.OriginateDelay
		if delay <= 0 {
			delay = time.Second + time.Duration(h.rng.Int63n(int64(2*time.Second)))
		}
		time.Sleep(delay)

		if err := seq.SendTransaction(); err != nil {
			h.log.Warn().Err(err).Str("client_id", seq.ClientID()).Msg("Failed to originate transaction")
			return
		}
	}
}

// stopAll signals every participant and joins their receive loops with a
// bounded wait; a loop that fails to exit in time is abandoned with its
// socket force-closed, so shutdown never hangs.
func (h *Harness) stopAll() {
	for _, seq := range h.seqs {
		seq.Stop()
	}

	for _, seq := range h.seqs {
		select {
		case <-seq.Done():
		case <-time.After(h.cfg.StopWait):
			h.log.Warn().Str("client_id", seq.ClientID()).Msg("Participant did not stop in time, abandoning")
		}
	}

	h.log.Info().Msg("All participants finished")
}

// clientIDFor assigns the human-readable participant ids sequencer-A,
// sequencer-B, ... falling back to numbering past the alphabet.
func clientIDFor(i int) string {
	if i < 26 {
		return fmt.Sprintf("sequencer-%c", 'A'+rune(i))
	}
	return fmt.Sprintf("sequencer-%d", i+1)
}

// chainIDFor draws from the fixed pool, extending it deterministically when
// more participants are requested than pool entries.
func chainIDFor(i int) []byte {
	if i < len(chainPool) {
		return chainPool[i]
	}
	return []byte{byte(0x15 + i), byte(0x37 + i)}
}
