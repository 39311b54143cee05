// Two Truths and a Lie
//
// One shared game document, mutated by admin commands and pushed to
// every connected screen after each change. The display laptop and the
// admin phone both speak the same websocket protocol; the server only
// ever emits {type:"state", data:<snapshot>}.
//
// Features:
// - WebSocket state sync: / (display), /admin (controls), /ws, /qr
// - Full snapshot sent to every client immediately on connect
// - Random participant draw with a 4s client-side slot animation;
//   the winner is decided server-side up front
// - One-second countdown timer, restart cancels any prior countdown
// - Challenger mechanic: at most 2 attempts per rolling 2-round window
// - Built-in and admin-added question sets, auto-advanced each round
// - Difficulty stages (easy/medium/hard/extreme) controlling points
// - Transient score-flash (1.2s) and challenge (2.5s) animations
// - In-browser QR button to share the display URL, backed by go-qrcode

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Hub owns the single GameState. Everything that mutates it runs on the
// run() goroutine: inbound commands, connect/disconnect bookkeeping,
// and scheduled callbacks re-entering through the tasks channel. No
// locks anywhere; the loop is the serialization point.
type Hub struct {
	cfg *Config

	state   *GameState
	clients map[*client]bool

	register   chan *client
	unregister chan *client
	commands   chan Command
	tasks      chan func()

	ctx context.Context

	// Generation counters. Bumping one orphans every callback scheduled
	// under the previous value, which is how a new startTimer cancels a
	// running countdown.
	timerSeq     int
	drawSeq      int
	flashSeq     int
	challengeSeq int

	tickInterval   time.Duration
	drawDelay      time.Duration
	flashDelay     time.Duration
	challengeDelay time.Duration
}

func newHub(ctx context.Context, cfg *Config) *Hub {
	h := &Hub{
		cfg:            cfg,
		state:          newGameState(int(cfg.defaultTimer.Seconds())),
		clients:        make(map[*client]bool),
		register:       make(chan *client),
		unregister:     make(chan *client),
		commands:       make(chan Command, 64),
		tasks:          make(chan func(), 64),
		ctx:            ctx,
		tickInterval:   time.Second,
		drawDelay:      4 * time.Second,
		flashDelay:     1200 * time.Millisecond,
		challengeDelay: 2500 * time.Millisecond,
	}
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.clients[c] = true
			if data, err := h.snapshot(); err == nil {
				h.sendTo(c, data)
			}

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case cmd := <-h.commands:
			h.dispatch(cmd)

		case fn := <-h.tasks:
			fn()
		}
	}
}

func (h *Hub) shutdown() {
	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(h.clients, c)
	}
}

// after schedules fn to run back on the hub goroutine after d.
func (h *Hub) after(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		select {
		case h.tasks <- fn:
		case <-h.ctx.Done():
		}
	})
}

type stateMessage struct {
	Type string     `json:"type"`
	Data *GameState `json:"data"`
}

// snapshot serializes a deep copy of the current state, so the bytes a
// slow client holds on to can never alias the live document.
func (h *Hub) snapshot() ([]byte, error) {
	return json.Marshal(stateMessage{Type: "state", Data: h.state.clone()})
}

func (h *Hub) broadcast() {
	data, err := h.snapshot()
	if err != nil {
		logf(h.cfg, "GAME: Snapshot marshal failed: %v", err)
		return
	}
	for c := range h.clients {
		h.sendTo(c, data)
	}
}

func (h *Hub) sendTo(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		// Client is slow/full - drop them.
		delete(h.clients, c)
		close(c.send)
	}
}

// currentState hands back a race-free copy of the document by round-
// tripping through the hub goroutine. Test-only inspection.
func (h *Hub) currentState() GameState {
	reply := make(chan GameState, 1)
	h.tasks <- func() { reply <- *h.state.clone() }
	return <-reply
}

// dispatch routes one decoded command to its handler. A panicking
// handler is contained here so one bad command cannot take down the
// shared loop.
func (h *Hub) dispatch(cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			logf(h.cfg, "GAME: Recovered from %q handler: %v", cmd.Type, r)
		}
	}()

	switch cmd.Type {
	case cmdSetStage:
		h.setStage(cmd.Stage)
	case cmdAddPlayer:
		h.addPlayer(cmd.Name)
	case cmdRemovePlayer:
		h.removePlayer(cmd.Index)
	case cmdAdjustPts:
		h.adjustPoints(cmd.Index, cmd.Delta)
	case cmdPickRandom:
		h.pickRandom()
	case cmdSelectQset:
		h.selectQset(cmd.Index)
	case cmdAddQset:
		h.addQset(cmd.Set)
	case cmdStartTimer:
		h.startTimer(cmd.Seconds)
	case cmdStopTimer:
		h.stopTimer()
	case cmdResetTimer:
		h.resetTimer(cmd.Seconds)
	case cmdLockAnswer:
		h.lockAnswer()
	case cmdRevealAnswer:
		h.revealAnswer()
	case cmdAwardParticipant:
		h.awardParticipant()
	case cmdParticipantWrong:
		h.participantWrong()
	case cmdNextRound:
		h.nextRound()
	case cmdSelectChallenger:
		h.selectChallenger(cmd.Name)
	case cmdClearChallenger:
		h.clearChallenger()
	case cmdChallengerCorrect:
		h.challengerCorrect()
	case cmdChallengerWrong:
		h.challengerWrong()
	case cmdToggleLeaderboard:
		h.toggleLeaderboard(cmd.Visible)
	case cmdResetAllScores:
		h.resetAllScores()
	case cmdClearAllPlayers:
		h.clearAllPlayers()
	case cmdResetQsets:
		h.resetQsets()
	case cmdUnknown:
		// Silently ignored; no broadcast.
	}
}

func (h *Hub) currentOrPlayer() string {
	if h.state.CurrentPlayer != "" {
		return h.state.CurrentPlayer
	}
	return "Player"
}

func (h *Hub) setStage(stage string) {
	if _, ok := stageConfig(stage); !ok {
		return
	}
	h.state.Stage = stage
	h.broadcast()
}

func (h *Hub) addPlayer(name string) {
	if name == "" || !h.state.addPlayer(name) {
		return
	}
	logf(h.cfg, "GAME: Player %q added", name)
	h.broadcast()
}

func (h *Hub) removePlayer(i int) {
	if h.state.removePlayer(i) {
		h.broadcast()
	}
}

func (h *Hub) adjustPoints(i, delta int) {
	if h.state.adjustPoints(i, delta) {
		h.broadcast()
	}
}

// pickRandom is the one two-stage mutation: the winner is chosen now,
// announced inside the slot animation payload, and committed after the
// animation delay.
func (h *Hub) pickRandom() {
	s := h.state

	avail := make([]*Player, 0, len(s.Players))
	names := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		names = append(names, p.Name)
		if !p.UsedInDraw {
			avail = append(avail, p)
		}
	}
	if len(avail) == 0 {
		return
	}
	picked := avail[rand.IntN(len(avail))]

	s.SlotAnimation = &SlotAnimation{Spinning: true, Result: picked.Name, Names: names}
	s.Phase = phaseSpinning
	h.broadcast()

	h.drawSeq++
	seq := h.drawSeq
	h.after(h.drawDelay, func() {
		if seq != h.drawSeq {
			return
		}
		s := h.state
		s.SlotAnimation = nil
		picked.UsedInDraw = true
		s.CurrentPlayer = picked.Name
		s.Round++
		s.Phase = phasePlaying
		s.Revealed = false
		s.Locked = false
		s.Challenger = ""
		s.resetChallengeWindows()
		s.autoAdvanceQuestionSet()
		s.Status = picked.Name + " is on stage! Start the timer when ready."
		logf(h.cfg, "GAME: Round %d, %q drawn", s.Round, picked.Name)
		h.broadcast()
	})
}

func (h *Hub) selectQset(i int) {
	if h.state.selectQuestionSet(i) {
		h.broadcast()
	}
}

func (h *Hub) addQset(set QuestionSet) {
	h.state.addQuestionSet(set)
	h.broadcast()
}

func (h *Hub) startTimer(seconds int) {
	s := h.state

	h.timerSeq++
	if seconds <= 0 {
		seconds = int(h.cfg.defaultTimer.Seconds())
	}
	s.TimerDuration = seconds
	s.TimerVal = seconds
	s.TimerRunning = true
	s.Status = h.currentOrPlayer() + " is thinking..."
	h.broadcast()

	h.scheduleTick(h.timerSeq)
}

func (h *Hub) scheduleTick(seq int) {
	h.after(h.tickInterval, func() { h.tick(seq) })
}

func (h *Hub) tick(seq int) {
	s := h.state
	if seq != h.timerSeq || !s.TimerRunning {
		return
	}

	s.TimerVal = max(0, s.TimerVal-1)
	if s.TimerVal <= 0 {
		s.TimerRunning = false
		s.Status = "TIME'S UP!"
	} else {
		h.scheduleTick(seq)
	}
	h.broadcast()
}

func (h *Hub) stopTimer() {
	h.timerSeq++
	h.state.TimerRunning = false
	h.broadcast()
}

func (h *Hub) resetTimer(seconds int) {
	s := h.state

	h.timerSeq++
	s.TimerRunning = false
	if seconds > 0 {
		s.TimerVal = seconds
	} else {
		s.TimerVal = s.TimerDuration
	}
	h.broadcast()
}

func (h *Hub) lockAnswer() {
	s := h.state

	h.timerSeq++
	s.TimerRunning = false
	s.Locked = true
	s.Phase = phaseLocked
	s.Status = h.currentOrPlayer() + " locked answer. Challenge or Reveal?"
	h.broadcast()
}

func (h *Hub) revealAnswer() {
	s := h.state

	s.Revealed = true
	s.Phase = phaseRevealed
	if s.CurrentSet != nil {
		s.CurrentSet.Used = true
	}
	s.Status = "Answer revealed! Was the participant correct?"
	h.broadcast()
}

func (h *Hub) awardParticipant() {
	s := h.state

	st, ok := stageConfig(s.Stage)
	if !ok {
		return
	}
	if p := s.findPlayer(s.CurrentPlayer); p != nil {
		p.Points += st.Points
	}
	s.Phase = phaseDone
	s.Status = fmt.Sprintf("%s +%d pts!", s.CurrentPlayer, st.Points)
	h.flashScore("+"+strconv.Itoa(st.Points), true)
}

func (h *Hub) participantWrong() {
	s := h.state

	s.Phase = phaseDone
	s.Status = h.currentOrPlayer() + " was wrong. Next round?"
	h.broadcast()
}

func (h *Hub) nextRound() {
	s := h.state

	s.CurrentSet = nil
	s.Revealed = false
	s.Locked = false
	s.Challenger = ""
	s.Phase = phaseIdle
	s.Status = "Select next player in Admin panel"
	h.broadcast()
}

func (h *Hub) selectChallenger(name string) {
	s := h.state

	p := s.findPlayer(name)
	if p == nil || p.ChallengeCount >= 2 {
		return
	}
	s.Challenger = name
	p.ChallengeCount++
	p.LastChallengeRound = s.Round
	s.Phase = phaseLocked
	s.ChallengeAnim = true
	s.Status = name + " challenges!"
	h.broadcast()

	h.challengeSeq++
	seq := h.challengeSeq
	h.after(h.challengeDelay, func() {
		if seq != h.challengeSeq {
			return
		}
		h.state.ChallengeAnim = false
		h.broadcast()
	})
}

func (h *Hub) clearChallenger() {
	h.state.Challenger = ""
	h.broadcast()
}

func (h *Hub) challengerCorrect() {
	s := h.state

	st, ok := stageConfig(s.Stage)
	if !ok {
		return
	}
	if p := s.findPlayer(s.Challenger); p != nil {
		p.Points += st.ChallengePoints
	}
	s.Revealed = true
	s.Phase = phaseRevealed
	if s.CurrentSet != nil {
		s.CurrentSet.Used = true
	}
	s.Status = fmt.Sprintf("Challenger correct! +%d pts. Revealing answer...", st.ChallengePoints)
	h.flashScore("+"+strconv.Itoa(st.ChallengePoints), true)
}

func (h *Hub) challengerWrong() {
	s := h.state

	st, ok := stageConfig(s.Stage)
	if !ok {
		return
	}
	if p := s.findPlayer(s.Challenger); p != nil {
		p.Points = max(0, p.Points-st.ChallengePenalty)
	}
	s.Revealed = true
	s.Phase = phaseRevealed
	if s.CurrentSet != nil {
		s.CurrentSet.Used = true
	}
	s.Status = fmt.Sprintf("Challenger wrong! -%d pts. Revealing answer...", st.ChallengePenalty)
	h.flashScore("-"+strconv.Itoa(st.ChallengePenalty), false)
}

// flashScore raises the transient score overlay and schedules its
// clear. Both edges broadcast.
func (h *Hub) flashScore(text string, positive bool) {
	h.state.ScoreFlash = &ScoreFlash{Text: text, Positive: positive}
	h.broadcast()

	h.flashSeq++
	seq := h.flashSeq
	h.after(h.flashDelay, func() {
		if seq != h.flashSeq {
			return
		}
		h.state.ScoreFlash = nil
		h.broadcast()
	})
}

func (h *Hub) toggleLeaderboard(visible bool) {
	h.state.ShowLeaderboard = visible
	h.broadcast()
}

func (h *Hub) resetAllScores() {
	s := h.state

	for _, p := range s.Players {
		p.Points = 0
		p.ChallengeCount = 0
		p.UsedInDraw = false
	}
	s.Round = 0
	s.CurrentPlayer = ""
	s.Challenger = ""
	s.Phase = phaseIdle
	s.Status = "Scores reset. Ready to start!"
	h.broadcast()
}

func (h *Hub) clearAllPlayers() {
	s := h.state

	s.Players = []*Player{}
	s.CurrentPlayer = ""
	s.Challenger = ""
	s.Phase = phaseIdle
	h.broadcast()
}

func (h *Hub) resetQsets() {
	h.state.resetQuestionSets()
	h.broadcast()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "GAME: Upgrade error from %s: %v", realIP(r), err)
			return
		}

		c := &client{
			conn: conn,
			send: make(chan []byte, 8),
			id:   uuid.NewString(),
		}

		h.register <- c
		logf(cfg, "GAME: Client %s connected from %s", c.id, realIP(r))

		go c.writePump()
		c.readPump(cfg, h)
	}
}

func (c *client) readPump(cfg *Config, h *Hub) {
	defer func() {
		h.unregister <- c
		_ = c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		cmd, err := parseCommand(raw)
		if err != nil {
			// Malformed payload; the connection stays open.
			logf(cfg, "GAME: Dropping malformed message from %s: %v", c.id, err)
			continue
		}

		h.commands <- cmd
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// qrHandler renders a PNG QR code for the display URL, so phones can
// scan their way in instead of typing an IP.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/"

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerTruthLieGame sets up routes so that:
//   - /           → display client (laptop/projector)
//   - /admin      → admin controls (phone)
//   - /ws         → shared websocket
//   - /qr         → PNG QR code for the display URL
func registerTruthLieGame(ctx context.Context, cfg *Config, mux *httprouter.Router, errs chan<- error) {
	h := newHub(ctx, cfg)
	go h.run()

	mux.GET(cfg.prefix+"/", serveHTML(cfg, errs, "player.html"))
	mux.GET(cfg.prefix+"/admin", serveHTML(cfg, errs, "admin.html"))
	mux.GET(cfg.prefix+"/assets/app.css", serveAssets(cfg, errs))
	mux.GET(cfg.prefix+"/assets/app.js", serveAssets(cfg, errs))
	mux.GET(cfg.prefix+"/ws", serveWS(cfg, h))
	mux.GET(cfg.prefix+"/qr", qrHandler(cfg))
}
