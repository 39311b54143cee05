package main

import (
	"slices"
	"strings"
)

type gamePhase string

const (
	phaseIdle     gamePhase = "idle"
	phaseSpinning gamePhase = "spinning"
	phasePlaying  gamePhase = "playing"
	phaseLocked   gamePhase = "locked"
	phaseRevealed gamePhase = "revealed"
	phaseDone     gamePhase = "done"
)

// Player is one roster entry. Names are unique case-insensitively.
type Player struct {
	Name               string `json:"name"`
	Points             int    `json:"pts"`
	UsedInDraw         bool   `json:"used"`
	ChallengeCount     int    `json:"challengeCount"`
	LastChallengeRound int    `json:"lastChallengeRound"`
}

// SlotAnimation is the transient draw payload. The winner is decided
// server-side up front; clients animate the suspense.
type SlotAnimation struct {
	Spinning bool     `json:"spinning"`
	Result   string   `json:"result"`
	Names    []string `json:"names"`
}

type ScoreFlash struct {
	Text     string `json:"text"`
	Positive bool   `json:"positive"`
}

// GameState is the single authoritative game document. Only the hub
// goroutine touches it; everyone else sees clones.
type GameState struct {
	Stage           string         `json:"stage"`
	Players         []*Player      `json:"players"`
	CurrentPlayer   string         `json:"currentPlayer"`
	CurrentSet      *QuestionSet   `json:"currentSet"`
	DefaultSets     []*QuestionSet `json:"defaultSets"`
	QuestionSets    []*QuestionSet `json:"questionSets"`
	Challenger      string         `json:"challenger"`
	Revealed        bool           `json:"revealed"`
	Locked          bool           `json:"locked"`
	Round           int            `json:"round"`
	TimerVal        int            `json:"timerVal"`
	TimerDuration   int            `json:"timerDuration"`
	TimerRunning    bool           `json:"timerRunning"`
	Phase           gamePhase      `json:"gamePhase"`
	Status          string         `json:"status"`
	ShowLeaderboard bool           `json:"showLeaderboard"`
	SlotAnimation   *SlotAnimation `json:"slotAnimation"`
	ScoreFlash      *ScoreFlash    `json:"scoreFlash"`
	ChallengeAnim   bool           `json:"challengeAnim"`
}

func newGameState(defaultTimer int) *GameState {
	return &GameState{
		Stage:         "easy",
		Players:       []*Player{},
		DefaultSets:   newDefaultSets(),
		QuestionSets:  []*QuestionSet{},
		TimerVal:      defaultTimer,
		TimerDuration: defaultTimer,
		Phase:         phaseIdle,
		Status:        "Waiting to start...",
	}
}

func (s *GameState) findPlayer(name string) *Player {
	for _, p := range s.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// addPlayer appends a new zero-score player. Case-insensitive name
// collisions are rejected.
func (s *GameState) addPlayer(name string) bool {
	for _, p := range s.Players {
		if strings.EqualFold(p.Name, name) {
			return false
		}
	}
	s.Players = append(s.Players, &Player{
		Name:               name,
		LastChallengeRound: -99,
	})
	return true
}

// removePlayer removes by position, clearing the current player if it
// was them.
func (s *GameState) removePlayer(i int) bool {
	if i < 0 || i >= len(s.Players) {
		return false
	}
	if s.CurrentPlayer == s.Players[i].Name {
		s.CurrentPlayer = ""
	}
	s.Players = slices.Delete(s.Players, i, i+1)
	return true
}

// adjustPoints applies delta to the i-th player, flooring at zero.
func (s *GameState) adjustPoints(i, delta int) bool {
	if i < 0 || i >= len(s.Players) {
		return false
	}
	s.Players[i].Points = max(0, s.Players[i].Points+delta)
	return true
}

// resetChallengeWindows zeroes the challenge counter of every player
// whose last challenge is two or more rounds behind the current round.
func (s *GameState) resetChallengeWindows() {
	for _, p := range s.Players {
		if s.Round-p.LastChallengeRound >= 2 {
			p.ChallengeCount = 0
		}
	}
}

// clone makes a structural deep copy for broadcast, so nothing the
// dispatcher sent can alias the live document.
func (s *GameState) clone() *GameState {
	out := *s

	out.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		cp := *p
		out.Players[i] = &cp
	}

	out.DefaultSets = cloneSets(s.DefaultSets)
	out.QuestionSets = cloneSets(s.QuestionSets)

	if s.CurrentSet != nil {
		cp := *s.CurrentSet
		out.CurrentSet = &cp
	}
	if s.SlotAnimation != nil {
		cp := *s.SlotAnimation
		cp.Names = slices.Clone(s.SlotAnimation.Names)
		out.SlotAnimation = &cp
	}
	if s.ScoreFlash != nil {
		cp := *s.ScoreFlash
		out.ScoreFlash = &cp
	}

	return &out
}

func cloneSets(in []*QuestionSet) []*QuestionSet {
	out := make([]*QuestionSet, len(in))
	for i, set := range in {
		cp := *set
		out[i] = &cp
	}
	return out
}
