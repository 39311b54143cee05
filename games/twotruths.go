// Each round, one player is drawn at random to take the stage
// They are shown a set of three statements, two true and one a lie
// The participant picks which statement they think is the lie, then locks in
// Any other player may challenge the locked answer, betting their own points
// The admin reveals the lie; the participant earns stage points if correct
// A correct challenger earns bonus points, a wrong one pays a penalty
// Stages (easy/medium/hard/extreme) scale all point values

// Display formats:
// A big shared screen (laptop/projector) shows the statements, timer, and leaderboard
// The admin runs the round from a phone: draw, timer, lock, reveal, award

// Implementation details:
// - One websocket per screen; the server pushes the full state after every change
// - A single global game per process; no rooms, no persistence
// - The draw winner is chosen server-side immediately, and only revealed
//   to the room after the slot animation finishes

// How to play
// - Admin adds everyone by name, then hits "Draw" to pick who is up
// - Start the timer; the participant reasons out loud for the room
// - Lock the answer; optionally accept a challenge from another player
// - Reveal, award points, next round

package games
