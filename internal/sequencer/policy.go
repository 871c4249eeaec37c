package sequencer

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Policy selects how a participant votes on proposals.
type Policy int

const (
	// PolicyCommit always votes to commit.
	PolicyCommit Policy = iota
	// PolicyAbort always votes to abort.
	PolicyAbort
	// PolicyRandom flips a coin per proposal.
	PolicyRandom
	// PolicyDelay votes to commit but holds the vote past the
	// coordinator's collection timeout, to exercise its timeout paths.
	PolicyDelay
)

// String returns string representation of the policy
func (p Policy) String() string {
	switch p {
	case PolicyCommit:
		return "commit"
	case PolicyAbort:
		return "abort"
	case PolicyRandom:
		return "random"
	case PolicyDelay:
		return "delay"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "commit", "":
		return PolicyCommit, nil
	case "abort":
		return PolicyAbort, nil
	case "random":
		return PolicyRandom, nil
	case "delay":
		return PolicyDelay, nil
	default:
		return PolicyCommit, fmt.Errorf("unknown vote strategy: %q", s)
	}
}

// Delays groups the timing ranges a participant draws from. The zero value
// is replaced by DefaultDelays.
type Delays struct {
	// VoteMin/VoteMax bound the per-participant validation delay drawn
	// once at construction.
	VoteMin, VoteMax time.Duration
	// LateMin/LateMax bound the per-vote delay of PolicyDelay,
	// deliberately longer than coordinator vote-collection timeouts.
	LateMin, LateMax time.Duration
	// SettleMin/SettleMax bound the block-inclusion settle delay after a
	// commit decision.
	SettleMin, SettleMax time.Duration
}

// DefaultDelays returns the timing ranges of the standard simulation.
func DefaultDelays() Delays {
	return Delays{
		VoteMin:   500 * time.Millisecond,
		VoteMax:   2 * time.Second,
		LateMin:   3 * time.Second,
		LateMax:   6 * time.Second,
		SettleMin: 500 * time.Millisecond,
		SettleMax: 1500 * time.Millisecond,
	}
}

func (d Delays) isZero() bool {
	return d == Delays{}
}

// decider resolves a participant's (vote, delay) pair. It is owned by one
// Sequencer and guarded by its mutex; the rng must not be shared.
type decider struct {
	policy    Policy
	delays    Delays
	rng       *rand.Rand
	voteDelay time.Duration
}

func newDecider(policy Policy, delays Delays, rng *rand.Rand) *decider {
	return &decider{
		policy:    policy,
		delays:    delays,
		rng:       rng,
		voteDelay: randomDuration(rng, delays.VoteMin, delays.VoteMax),
	}
}

// Decide returns the vote for a proposal and how long to wait before
// sending it. It never fails: unrecognized policies fall back to commit.
func (d *decider) Decide(xtID uint32) (bool, time.Duration) {
	switch d.policy {
	case PolicyAbort:
		return false, d.voteDelay
	case PolicyRandom:
		return d.rng.Intn(2) == 0, d.voteDelay
	case PolicyDelay:
		return true, randomDuration(d.rng, d.delays.LateMin, d.delays.LateMax)
	default:
		return true, d.voteDelay
	}
}

// settleDelay returns the simulated block-inclusion time for one commit.
func (d *decider) settleDelay() time.Duration {
	return randomDuration(d.rng, d.delays.SettleMin, d.delays.SettleMax)
}

func randomDuration(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)))
}
