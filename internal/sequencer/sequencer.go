// Package sequencer implements one simulated chain sequencer participating
// in the coordinator's two-phase commit protocol over TCP.
package sequencer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/compose-network/sequencer-sim/internal/wire"
)

// State represents the coarse protocol state of a participant. It tracks
// the most recently resolved transaction and is advisory: per-transaction
// bookkeeping lives in the pending-vote map.
type State int

const (
	StateIdle State = iota
	StateVoting
	StateCommitted
	StateAborted
)

// String returns string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateVoting:
		return "voting"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// defaultChains is the fixed set of chains named when a participant
// originates a cross-chain proposal.
var defaultChains = [][]byte{
	{0x12, 0x34},
	{0x13, 0x35},
	{0x14, 0x36},
}

// Config holds a participant's identity and connection settings.
type Config struct {
	ClientID        string
	ChainID         []byte
	CoordinatorAddr string
	Strategy        Policy

	ConnectTimeout time.Duration
	// ReadTimeout bounds a single socket read so the receive loop can
	// poll its stop signal between frames.
	ReadTimeout time.Duration

	// Delays overrides the standard timing ranges; zero means defaults.
	Delays Delays
	// Seed fixes the participant's rng; zero draws from the clock.
	Seed int64
}

func (c *Config) applyDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = time.Second
	}
	if c.Delays.isZero() {
		c.Delays = DefaultDelays()
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Sequencer is one simulated participant: a coordinator connection, a vote
// policy, and per-transaction 2PC bookkeeping. All exported methods are
// safe for concurrent use.
type Sequencer struct {
	cfg Config
	log zerolog.Logger

	conn    net.Conn
	writeMu sync.Mutex // single-writer invariant on the connection

	mu        sync.Mutex
	decider   *decider
	xtCounter uint32
	pending   map[uint32]bool
	state     State

	running atomic.Bool
	done    chan struct{}
}

// New creates a participant with fixed identity and policy. Connect must be
// called before Run.
func New(cfg Config, log zerolog.Logger) *Sequencer {
	cfg.applyDefaults()

	rng := rand.New(rand.NewSource(cfg.Seed))

	return &Sequencer{
		cfg:     cfg,
		log:     log.With().Str("client_id", cfg.ClientID).Logger(),
		decider: newDecider(cfg.Strategy, cfg.Delays, rng),
		pending: make(map[uint32]bool),
		state:   StateIdle,
		done:    make(chan struct{}),
	}
}

// Connect dials the coordinator. The participant connects exactly once; a
// lost connection ends its run.
func (s *Sequencer) Connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: s.cfg.ConnectTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.CoordinatorAddr)
	if err != nil {
		return fmt.Errorf("connect to coordinator %s: %w", s.cfg.CoordinatorAddr, err)
	}

	s.conn = conn
	s.running.Store(true)

	s.log.Info().
		Str("coordinator", s.cfg.CoordinatorAddr).
		Str("chain_id", hex.EncodeToString(s.cfg.ChainID)).
		Str("strategy", s.cfg.Strategy.String()).
		Msg("Connected to coordinator")

	return nil
}

// Run drives the receive loop until the context is cancelled, Stop is
// called, or the connection fails. Decode errors discard the offending
// frame and keep the loop alive; socket errors end it.
func (s *Sequencer) Run(ctx context.Context) {
	defer close(s.done)
	defer s.running.Store(false)
	defer s.conn.Close()
	defer s.log.Info().Msg("Disconnected")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !s.running.Load() {
			return
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			s.log.Warn().Err(err).Msg("Failed to set read deadline")
			return
		}

		frame, err := wire.ReadFrame(s.conn)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue // poll stop signal
			}
			if errors.Is(err, io.EOF) {
				s.log.Info().Msg("Coordinator closed connection")
			} else if !errors.Is(err, net.ErrClosed) {
				s.log.Warn().Err(err).Msg("Receive failed")
			}
			return
		}

		msg, err := wire.Decode(frame)
		if err != nil {
			s.log.Warn().Err(err).Int("frame_len", len(frame)).Msg("Discarding undecodable frame")
			continue
		}

		s.handleMessage(msg)
	}
}

// Stop cooperatively shuts the participant down: the running flag flips and
// the socket is force-closed so a blocked read returns immediately.
func (s *Sequencer) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	if s.conn != nil {
		s.conn.Close()
	}
}

// Running reports whether the receive loop is still alive. The harness
// polls this to avoid joining a participant that already died.
func (s *Sequencer) Running() bool {
	return s.running.Load()
}

// Done is closed when the receive loop exits.
func (s *Sequencer) Done() <-chan struct{} {
	return s.done
}

// ClientID returns the participant's identity.
func (s *Sequencer) ClientID() string {
	return s.cfg.ClientID
}

// State returns the coarse advisory protocol state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PendingVotes returns the number of in-flight transactions.
func (s *Sequencer) PendingVotes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// SendTransaction originates a cross-chain proposal naming the default
// chain set, then votes on it. The coordinator broadcasts proposals to the
// other participants but not back to the sender, so the originator assigns
// the next local id itself and self-votes.
func (s *Sequencer) SendTransaction() error {
	txs := make([]*wire.TransactionRequest, 0, len(defaultChains))
	for i, chain := range defaultChains {
		txs = append(txs, &wire.TransactionRequest{
			ChainID:      chain,
			Transactions: [][]byte{{0x01, 0x02, 0x03, 0x04, byte(0x05 + i)}},
		})
	}

	msg := &wire.Message{
		SenderID:  s.cfg.ClientID,
		XTRequest: &wire.XTRequest{Transactions: txs},
	}

	if err := s.send(msg); err != nil {
		return fmt.Errorf("send xT request: %w", err)
	}

	s.log.Info().Int("chains", len(txs)).Msg("Sent xT request")

	s.scheduleVote()
	return nil
}

func (s *Sequencer) handleMessage(msg *wire.Message) {
	switch {
	case msg.XTRequest != nil:
		s.log.Info().
			Str("sender_id", msg.SenderID).
			Int("tx_count", len(msg.XTRequest.Transactions)).
			Msg("Received xT request broadcast")
		s.scheduleVote()
	case msg.Decided != nil:
		s.handleDecided(msg.Decided)
	default:
		s.log.Debug().Str("sender_id", msg.SenderID).Msg("Ignoring unhandled message")
	}
}

// scheduleVote assigns the next local transaction id and schedules the
// delayed vote for it. The wire format carries no explicit id, so the local
// counter mirrors the coordinator's broadcast-order assignment starting at
// 1; it is advisory if the coordinator ever numbers differently.
func (s *Sequencer) scheduleVote() {
	s.mu.Lock()
	s.xtCounter++
	xtID := s.xtCounter
	s.state = StateVoting
	decision, delay := s.decider.Decide(xtID)
	s.pending[xtID] = decision
	s.mu.Unlock()

	go s.sendVoteAfter(xtID, decision, delay)
}

// sendVoteAfter sleeps out the validation delay and casts the vote. The
// vote is sent even if the transaction already resolved: late votes are the
// whole point of the delay policy.
func (s *Sequencer) sendVoteAfter(xtID uint32, decision bool, delay time.Duration) {
	time.Sleep(delay)

	msg := &wire.Message{
		SenderID: s.cfg.ClientID,
		Vote: &wire.Vote{
			SenderChainID: s.cfg.ChainID,
			XtID:          xtID,
			Vote:          decision,
		},
	}

	if err := s.send(msg); err != nil {
		s.log.Warn().Err(err).Uint32("xt_id", xtID).Msg("Failed to send vote")
		return
	}

	s.log.Info().
		Uint32("xt_id", xtID).
		Bool("vote", decision).
		Dur("delay", delay).
		Msg("Sent vote")
}

func (s *Sequencer) handleDecided(d *wire.Decided) {
	s.mu.Lock()
	if _, ok := s.pending[d.XtID]; !ok {
		s.mu.Unlock()
		// Unknown or already resolved transaction: duplicate decisions
		// are a no-op.
		s.log.Debug().Uint32("xt_id", d.XtID).Msg("Decision for unknown transaction, ignoring")
		return
	}
	delete(s.pending, d.XtID)
	var settle time.Duration
	if d.Decision {
		s.state = StateCommitted
		settle = s.decider.settleDelay()
	} else {
		s.state = StateAborted
	}
	s.mu.Unlock()

	if d.Decision {
		s.log.Info().Uint32("xt_id", d.XtID).Msg("Transaction committed")
		go s.sendBlockAfter(d.XtID, settle)
	} else {
		s.log.Info().Uint32("xt_id", d.XtID).Msg("Transaction aborted")
	}
}

// sendBlockAfter waits out the simulated block-inclusion time and sends the
// confirmation block for one committed transaction.
func (s *Sequencer) sendBlockAfter(xtID uint32, settle time.Duration) {
	time.Sleep(settle)

	blockData := fmt.Sprintf("Block from %s at %.2f with 1 TXs",
		s.cfg.ClientID, float64(time.Now().UnixMilli())/1000)

	msg := &wire.Message{
		SenderID: s.cfg.ClientID,
		Block: &wire.Block{
			ChainID:       s.cfg.ChainID,
			BlockData:     []byte(blockData),
			IncludedXtIDs: []uint32{xtID},
		},
	}

	if err := s.send(msg); err != nil {
		s.log.Warn().Err(err).Uint32("xt_id", xtID).Msg("Failed to send block")
		return
	}

	s.log.Info().Uint32("xt_id", xtID).Msg("Sent block")
}

// send serializes writes on the connection. Delayed vote and block senders
// run on their own goroutines, so the write path is the one place
// participant tasks share.
func (s *Sequencer) send(m *wire.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	if !s.running.Load() {
		return ErrStopped
	}

	return wire.WriteMessage(s.conn, m)
}
