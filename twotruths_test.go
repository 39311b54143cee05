package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestHub starts a hub with animation and timer delays shrunk so
// whole rounds finish in milliseconds. tune may adjust delays before
// the loop starts; pass nil for the defaults.
func newTestHub(t *testing.T, tune func(*Hub)) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := newHub(ctx, &Config{defaultTimer: 60 * time.Second})
	h.tickInterval = 2 * time.Millisecond
	h.drawDelay = 5 * time.Millisecond
	h.flashDelay = 5 * time.Millisecond
	h.challengeDelay = 5 * time.Millisecond
	if tune != nil {
		tune(h)
	}
	go h.run()

	return h
}

// waitState polls the hub until pred holds, so tests never hang on a
// missed broadcast.
func waitState(t *testing.T, h *Hub, desc string, pred func(GameState) bool) GameState {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := h.currentState()
		if pred(s) {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", desc)
	return GameState{}
}

func recvState(t *testing.T, ch <-chan []byte, within time.Duration) GameState {
	t.Helper()

	select {
	case raw, ok := <-ch:
		require.True(t, ok, "client channel closed unexpectedly")
		var msg struct {
			Type string    `json:"type"`
			Data GameState `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		require.Equal(t, "state", msg.Type)
		return msg.Data
	case <-time.After(within):
		t.Fatalf("timed out waiting for a state broadcast")
		return GameState{}
	}
}

func recvNoState(t *testing.T, ch <-chan []byte, within time.Duration) {
	t.Helper()

	select {
	case raw, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no broadcast within %v, got: %s", within, raw)
	case <-time.After(within):
	}
}

func TestJoinReceivesImmediateSnapshot(t *testing.T) {
	h := newTestHub(t, nil)

	c := &client{send: make(chan []byte, 16)}
	h.register <- c

	s := recvState(t, c.send, time.Second)
	assert.Equal(t, phaseIdle, s.Phase)
	assert.Equal(t, "easy", s.Stage)
	assert.Equal(t, "Waiting to start...", s.Status)
	assert.Empty(t, s.Players)
	assert.Len(t, s.DefaultSets, len(defaultSets))
}

func TestScenarioFullRound(t *testing.T) {
	h := newTestHub(t, nil)

	h.commands <- Command{Type: cmdAddPlayer, Name: "Alice"}
	h.commands <- Command{Type: cmdAddPlayer, Name: "Bob"}
	h.commands <- Command{Type: cmdPickRandom}

	s := waitState(t, h, "draw commit", func(s GameState) bool {
		return s.Phase == phasePlaying
	})
	assert.Contains(t, []string{"Alice", "Bob"}, s.CurrentPlayer)
	assert.Equal(t, 1, s.Round)
	assert.Nil(t, s.SlotAnimation)
	assert.False(t, s.Revealed)
	assert.False(t, s.Locked)
	require.NotNil(t, s.CurrentSet)
	winner := s.CurrentPlayer

	h.commands <- Command{Type: cmdStartTimer, Seconds: 30}
	s = waitState(t, h, "timer start", func(s GameState) bool {
		return s.TimerRunning
	})
	assert.Equal(t, 30, s.TimerDuration)

	s = waitState(t, h, "timer expiry", func(s GameState) bool {
		return !s.TimerRunning && s.TimerVal == 0
	})
	assert.Equal(t, "TIME'S UP!", s.Status)

	h.commands <- Command{Type: cmdLockAnswer}
	s = waitState(t, h, "locked answer", func(s GameState) bool {
		return s.Locked
	})
	assert.Equal(t, phaseLocked, s.Phase)

	h.commands <- Command{Type: cmdRevealAnswer}
	s = waitState(t, h, "reveal", func(s GameState) bool {
		return s.Revealed
	})
	assert.Equal(t, phaseRevealed, s.Phase)
	assert.True(t, s.CurrentSet.Used)

	h.commands <- Command{Type: cmdAwardParticipant}
	s = waitState(t, h, "award", func(s GameState) bool {
		return s.Phase == phaseDone
	})
	require.NotNil(t, s.findPlayer(winner))
	assert.Equal(t, 10, s.findPlayer(winner).Points)
}

func TestPickRandomWithNoEligiblePlayersIsNoop(t *testing.T) {
	h := newTestHub(t, nil)

	h.commands <- Command{Type: cmdPickRandom}

	time.Sleep(20 * time.Millisecond)
	s := h.currentState()
	assert.Equal(t, phaseIdle, s.Phase)
	assert.Nil(t, s.SlotAnimation)
	assert.Equal(t, 0, s.Round)
}

func TestSecondDrawPicksRemainingPlayer(t *testing.T) {
	h := newTestHub(t, nil)

	h.commands <- Command{Type: cmdAddPlayer, Name: "Alice"}
	h.commands <- Command{Type: cmdAddPlayer, Name: "Bob"}
	h.commands <- Command{Type: cmdPickRandom}

	s := waitState(t, h, "first draw", func(s GameState) bool {
		return s.Round == 1
	})
	first := s.CurrentPlayer

	h.commands <- Command{Type: cmdPickRandom}
	s = waitState(t, h, "second draw", func(s GameState) bool {
		return s.Round == 2
	})

	assert.NotEqual(t, first, s.CurrentPlayer)
	for _, p := range s.Players {
		assert.True(t, p.UsedInDraw)
	}

	// Everyone has been drawn; a third draw changes nothing.
	h.commands <- Command{Type: cmdPickRandom}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, h.currentState().Round)
}

func TestDrawAnnouncesWinnerInsideAnimation(t *testing.T) {
	h := newTestHub(t, nil)

	c := &client{send: make(chan []byte, 32)}
	h.register <- c
	_ = recvState(t, c.send, time.Second)

	h.commands <- Command{Type: cmdAddPlayer, Name: "Alice"}
	_ = recvState(t, c.send, time.Second)

	h.commands <- Command{Type: cmdPickRandom}

	spin := recvState(t, c.send, time.Second)
	assert.Equal(t, phaseSpinning, spin.Phase)
	require.NotNil(t, spin.SlotAnimation)
	assert.True(t, spin.SlotAnimation.Spinning)
	assert.Equal(t, "Alice", spin.SlotAnimation.Result)
	assert.Equal(t, []string{"Alice"}, spin.SlotAnimation.Names)
	// Not committed yet: the roster still shows no one drawn.
	assert.Equal(t, "", spin.CurrentPlayer)

	commit := recvState(t, c.send, time.Second)
	assert.Equal(t, phasePlaying, commit.Phase)
	assert.Equal(t, "Alice", commit.CurrentPlayer)
	assert.Nil(t, commit.SlotAnimation)
}

func TestChallengeLimitAndWindowReset(t *testing.T) {
	h := newTestHub(t, nil)

	h.commands <- Command{Type: cmdAddPlayer, Name: "Alice"}
	h.commands <- Command{Type: cmdAddPlayer, Name: "Bob"}

	h.commands <- Command{Type: cmdSelectChallenger, Name: "Bob"}
	s := waitState(t, h, "first challenge", func(s GameState) bool {
		return s.Challenger == "Bob"
	})
	assert.Equal(t, 1, s.findPlayer("Bob").ChallengeCount)
	assert.Equal(t, phaseLocked, s.Phase)

	h.commands <- Command{Type: cmdClearChallenger}
	h.commands <- Command{Type: cmdSelectChallenger, Name: "Bob"}
	waitState(t, h, "second challenge", func(s GameState) bool {
		p := s.findPlayer("Bob")
		return p != nil && p.ChallengeCount == 2
	})

	// Third attempt inside the window is blocked.
	h.commands <- Command{Type: cmdClearChallenger}
	h.commands <- Command{Type: cmdSelectChallenger, Name: "Bob"}
	time.Sleep(20 * time.Millisecond)
	s = h.currentState()
	assert.Equal(t, "", s.Challenger)
	assert.Equal(t, 2, s.findPlayer("Bob").ChallengeCount)

	// Unknown names are ignored too.
	h.commands <- Command{Type: cmdSelectChallenger, Name: "Mallory"}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "", h.currentState().Challenger)

	// Two rounds later the window expires and Bob may challenge again.
	h.commands <- Command{Type: cmdPickRandom}
	waitState(t, h, "round 1", func(s GameState) bool { return s.Round == 1 })
	h.commands <- Command{Type: cmdPickRandom}
	s = waitState(t, h, "round 2", func(s GameState) bool { return s.Round == 2 })
	assert.Equal(t, 0, s.findPlayer("Bob").ChallengeCount)

	h.commands <- Command{Type: cmdSelectChallenger, Name: "Bob"}
	s = waitState(t, h, "challenge after window reset", func(s GameState) bool {
		return s.Challenger == "Bob"
	})
	assert.Equal(t, 1, s.findPlayer("Bob").ChallengeCount)
	assert.Equal(t, 2, s.findPlayer("Bob").LastChallengeRound)
}

func TestChallengeAnimationClears(t *testing.T) {
	h := newTestHub(t, func(h *Hub) {
		h.challengeDelay = 100 * time.Millisecond
	})

	h.commands <- Command{Type: cmdAddPlayer, Name: "Bob"}
	h.commands <- Command{Type: cmdSelectChallenger, Name: "Bob"}

	waitState(t, h, "challenge animation", func(s GameState) bool {
		return s.ChallengeAnim
	})
	waitState(t, h, "challenge animation clear", func(s GameState) bool {
		return !s.ChallengeAnim
	})
}

func TestChallengerOutcomes(t *testing.T) {
	h := newTestHub(t, func(h *Hub) {
		h.flashDelay = 300 * time.Millisecond
	})

	h.commands <- Command{Type: cmdAddPlayer, Name: "Alice"}
	h.commands <- Command{Type: cmdSelectQset, Index: 0}
	h.commands <- Command{Type: cmdSelectChallenger, Name: "Alice"}
	waitState(t, h, "challenger set", func(s GameState) bool {
		return s.Challenger == "Alice"
	})

	// Wrong on an empty score floors at zero instead of going negative.
	h.commands <- Command{Type: cmdChallengerWrong}
	s := waitState(t, h, "challenger wrong", func(s GameState) bool {
		return s.Revealed
	})
	assert.Equal(t, 0, s.findPlayer("Alice").Points)
	assert.Equal(t, phaseRevealed, s.Phase)
	assert.True(t, s.CurrentSet.Used)
	assert.True(t, s.DefaultSets[0].Used)
	require.NotNil(t, s.ScoreFlash)
	assert.Equal(t, "-5", s.ScoreFlash.Text)
	assert.False(t, s.ScoreFlash.Positive)

	waitState(t, h, "score flash clear", func(s GameState) bool {
		return s.ScoreFlash == nil
	})

	// A correct challenge awards the stage's challenger points.
	h.commands <- Command{Type: cmdNextRound}
	h.commands <- Command{Type: cmdSelectQset, Index: 1}
	h.commands <- Command{Type: cmdSelectChallenger, Name: "Alice"}
	waitState(t, h, "second challenge", func(s GameState) bool {
		p := s.findPlayer("Alice")
		return p != nil && p.ChallengeCount == 2
	})

	h.commands <- Command{Type: cmdChallengerCorrect}
	s = waitState(t, h, "challenger correct", func(s GameState) bool {
		p := s.findPlayer("Alice")
		return p != nil && p.Points == 5
	})
	assert.True(t, s.Revealed)
	assert.True(t, s.DefaultSets[1].Used)
	require.NotNil(t, s.ScoreFlash)
	assert.True(t, s.ScoreFlash.Positive)
}

func TestTimerControls(t *testing.T) {
	// Slow ticks so stopTimer lands before the first one.
	h := newTestHub(t, func(h *Hub) {
		h.tickInterval = 250 * time.Millisecond
	})

	h.commands <- Command{Type: cmdStartTimer, Seconds: 30}
	waitState(t, h, "timer running", func(s GameState) bool {
		return s.TimerRunning
	})

	h.commands <- Command{Type: cmdStopTimer}
	s := waitState(t, h, "timer stopped", func(s GameState) bool {
		return !s.TimerRunning
	})
	assert.Equal(t, 30, s.TimerVal)

	// Stale ticks from the cancelled countdown never land.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 30, h.currentState().TimerVal)

	h.commands <- Command{Type: cmdResetTimer, Seconds: 10}
	s = waitState(t, h, "timer reset to value", func(s GameState) bool {
		return s.TimerVal == 10
	})
	assert.False(t, s.TimerRunning)

	h.commands <- Command{Type: cmdResetTimer}
	waitState(t, h, "timer reset to duration", func(s GameState) bool {
		return s.TimerVal == 30
	})
}

func TestStartTimerDefaultsWhenValueMissing(t *testing.T) {
	h := newTestHub(t, func(h *Hub) {
		h.tickInterval = 250 * time.Millisecond
	})

	h.commands <- Command{Type: cmdStartTimer}
	s := waitState(t, h, "timer running", func(s GameState) bool {
		return s.TimerRunning
	})
	assert.Equal(t, 60, s.TimerDuration)
	assert.Equal(t, 60, s.TimerVal)
}

func TestLockAnswerCancelsCountdown(t *testing.T) {
	h := newTestHub(t, func(h *Hub) {
		h.tickInterval = 250 * time.Millisecond
	})

	h.commands <- Command{Type: cmdAddPlayer, Name: "Alice"}
	h.commands <- Command{Type: cmdStartTimer, Seconds: 30}
	waitState(t, h, "timer running", func(s GameState) bool {
		return s.TimerRunning
	})

	h.commands <- Command{Type: cmdLockAnswer}
	s := waitState(t, h, "locked", func(s GameState) bool {
		return s.Locked
	})
	assert.False(t, s.TimerRunning)
	assert.Equal(t, phaseLocked, s.Phase)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 30, h.currentState().TimerVal)
}

func TestRevealWithoutCurrentSet(t *testing.T) {
	h := newTestHub(t, nil)

	h.commands <- Command{Type: cmdRevealAnswer}
	s := waitState(t, h, "reveal", func(s GameState) bool {
		return s.Revealed
	})

	assert.Equal(t, phaseRevealed, s.Phase)
	for _, set := range s.DefaultSets {
		assert.False(t, set.Used)
	}
}

func TestUnknownStageIsIgnored(t *testing.T) {
	h := newTestHub(t, nil)

	c := &client{send: make(chan []byte, 16)}
	h.register <- c
	_ = recvState(t, c.send, time.Second)

	h.commands <- Command{Type: cmdSetStage, Stage: "nightmare"}
	recvNoState(t, c.send, 50*time.Millisecond)
	assert.Equal(t, "easy", h.currentState().Stage)

	h.commands <- Command{Type: cmdSetStage, Stage: "extreme"}
	s := recvState(t, c.send, time.Second)
	assert.Equal(t, "extreme", s.Stage)
}

func TestUnknownCommandProducesNoBroadcast(t *testing.T) {
	h := newTestHub(t, nil)

	c := &client{send: make(chan []byte, 16)}
	h.register <- c
	_ = recvState(t, c.send, time.Second)

	h.commands <- Command{Type: cmdUnknown}
	recvNoState(t, c.send, 50*time.Millisecond)
}

func TestSlowClientIsDropped(t *testing.T) {
	h := newTestHub(t, nil)

	slow := &client{send: make(chan []byte, 1)}
	healthy := &client{send: make(chan []byte, 16)}
	h.register <- slow
	h.register <- healthy
	_ = recvState(t, healthy.send, time.Second)

	// The join snapshot fills the slow client's buffer; the next
	// broadcast overflows it and drops them.
	h.commands <- Command{Type: cmdAddPlayer, Name: "Alice"}

	s := recvState(t, healthy.send, time.Second)
	require.Len(t, s.Players, 1)

	_ = recvState(t, slow.send, time.Second) // buffered join snapshot
	_, ok := <-slow.send
	assert.False(t, ok, "expected slow client channel to be closed")
}

func TestCustomSetRoundTrip(t *testing.T) {
	h := newTestHub(t, nil)

	h.commands <- Command{Type: cmdAddQset, Set: QuestionSet{A: "one", B: "two", C: "three", Lie: "a", Explain: "because"}}
	s := waitState(t, h, "custom set added", func(s GameState) bool {
		return len(s.QuestionSets) == 1
	})
	assert.False(t, s.QuestionSets[0].Used)

	h.commands <- Command{Type: cmdSelectQset, Index: len(defaultSets)}
	waitState(t, h, "custom set selected", func(s GameState) bool {
		return s.CurrentSet != nil && s.CurrentSet.A == "one"
	})

	h.commands <- Command{Type: cmdRevealAnswer}
	s = waitState(t, h, "custom set revealed", func(s GameState) bool {
		return s.Revealed
	})
	assert.True(t, s.QuestionSets[0].Used)

	h.commands <- Command{Type: cmdResetQsets}
	s = waitState(t, h, "question sets reset", func(s GameState) bool {
		return len(s.QuestionSets) == 0
	})
	assert.Nil(t, s.CurrentSet)
	for _, set := range s.DefaultSets {
		assert.False(t, set.Used)
	}
}

func TestResetAllScoresAndClearAllPlayers(t *testing.T) {
	h := newTestHub(t, nil)

	h.commands <- Command{Type: cmdAddPlayer, Name: "Alice"}
	h.commands <- Command{Type: cmdAddPlayer, Name: "Bob"}
	h.commands <- Command{Type: cmdAdjustPts, Index: 0, Delta: 25}
	h.commands <- Command{Type: cmdPickRandom}
	waitState(t, h, "draw commit", func(s GameState) bool {
		return s.Round == 1
	})

	h.commands <- Command{Type: cmdResetAllScores}
	s := waitState(t, h, "scores reset", func(s GameState) bool {
		return s.Round == 0 && s.Phase == phaseIdle
	})
	assert.Equal(t, "", s.CurrentPlayer)
	for _, p := range s.Players {
		assert.Equal(t, 0, p.Points)
		assert.Equal(t, 0, p.ChallengeCount)
		assert.False(t, p.UsedInDraw)
	}

	h.commands <- Command{Type: cmdClearAllPlayers}
	s = waitState(t, h, "players cleared", func(s GameState) bool {
		return len(s.Players) == 0
	})
	assert.Equal(t, "", s.CurrentPlayer)
	assert.Equal(t, phaseIdle, s.Phase)
}

func TestToggleLeaderboard(t *testing.T) {
	h := newTestHub(t, nil)

	h.commands <- Command{Type: cmdToggleLeaderboard, Visible: true}
	waitState(t, h, "leaderboard shown", func(s GameState) bool {
		return s.ShowLeaderboard
	})

	h.commands <- Command{Type: cmdToggleLeaderboard, Visible: false}
	waitState(t, h, "leaderboard hidden", func(s GameState) bool {
		return !s.ShowLeaderboard
	})
}
