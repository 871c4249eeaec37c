package sequencer

import (
	"math/rand"
	"testing"
	"time"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Policy
		wantErr bool
	}{
		{name: "commit", input: "commit", want: PolicyCommit},
		{name: "abort", input: "abort", want: PolicyAbort},
		{name: "random", input: "random", want: PolicyRandom},
		{name: "delay", input: "delay", want: PolicyDelay},
		{name: "case insensitive", input: "Commit", want: PolicyCommit},
		{name: "empty defaults to commit", input: "", want: PolicyCommit},
		{name: "unknown strategy", input: "byzantine", want: PolicyCommit, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePolicy(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePolicy(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePolicy(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecider_Decide(t *testing.T) {
	delays := DefaultDelays()

	t.Run("commit always votes true with fixed delay", func(t *testing.T) {
		d := newDecider(PolicyCommit, delays, rand.New(rand.NewSource(1)))

		first := time.Duration(-1)
		for xt := uint32(1); xt <= 10; xt++ {
			vote, delay := d.Decide(xt)
			if !vote {
				t.Fatalf("commit policy voted false for xt %d", xt)
			}
			if delay < delays.VoteMin || delay >= delays.VoteMax {
				t.Fatalf("vote delay %v outside [%v, %v)", delay, delays.VoteMin, delays.VoteMax)
			}
			if first < 0 {
				first = delay
			} else if delay != first {
				t.Fatalf("vote delay redrawn: %v != %v", delay, first)
			}
		}
	})

	t.Run("abort always votes false", func(t *testing.T) {
		d := newDecider(PolicyAbort, delays, rand.New(rand.NewSource(2)))
		for xt := uint32(1); xt <= 10; xt++ {
			if vote, _ := d.Decide(xt); vote {
				t.Fatalf("abort policy voted true for xt %d", xt)
			}
		}
	})

	t.Run("random produces both votes", func(t *testing.T) {
		d := newDecider(PolicyRandom, delays, rand.New(rand.NewSource(3)))
		var trues, falses int
		for xt := uint32(1); xt <= 100; xt++ {
			if vote, _ := d.Decide(xt); vote {
				trues++
			} else {
				falses++
			}
		}
		if trues == 0 || falses == 0 {
			t.Fatalf("random policy not random: %d true, %d false", trues, falses)
		}
	})

	t.Run("delay votes true past the collection timeout", func(t *testing.T) {
		d := newDecider(PolicyDelay, delays, rand.New(rand.NewSource(4)))

		seen := map[time.Duration]bool{}
		for xt := uint32(1); xt <= 10; xt++ {
			vote, delay := d.Decide(xt)
			if !vote {
				t.Fatalf("delay policy voted false for xt %d", xt)
			}
			if delay < delays.LateMin || delay >= delays.LateMax {
				t.Fatalf("late delay %v outside [%v, %v)", delay, delays.LateMin, delays.LateMax)
			}
			seen[delay] = true
		}
		// Unlike the other policies the delay is redrawn per vote.
		if len(seen) < 2 {
			t.Fatalf("late delay never redrawn across votes")
		}
	})
}

func TestDecider_SettleDelay(t *testing.T) {
	delays := DefaultDelays()
	d := newDecider(PolicyCommit, delays, rand.New(rand.NewSource(5)))

	for i := 0; i < 20; i++ {
		settle := d.settleDelay()
		if settle < delays.SettleMin || settle >= delays.SettleMax {
			t.Fatalf("settle delay %v outside [%v, %v)", settle, delays.SettleMin, delays.SettleMax)
		}
	}
}

func TestRandomDuration_DegenerateRange(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	if got := randomDuration(rng, time.Second, time.Second); got != time.Second {
		t.Fatalf("randomDuration collapsed range = %v, want 1s", got)
	}
}
