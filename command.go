package main

import (
	"bytes"
	"encoding/json"
)

// Inbound envelope. Every client message is {type, data}, with the data
// shape depending on the type.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type commandType string

const (
	cmdSetStage          commandType = "setStage"
	cmdAddPlayer         commandType = "addPlayer"
	cmdRemovePlayer      commandType = "removePlayer"
	cmdAdjustPts         commandType = "adjustPts"
	cmdPickRandom        commandType = "pickRandom"
	cmdSelectQset        commandType = "selectQset"
	cmdAddQset           commandType = "addQset"
	cmdStartTimer        commandType = "startTimer"
	cmdStopTimer         commandType = "stopTimer"
	cmdResetTimer        commandType = "resetTimer"
	cmdLockAnswer        commandType = "lockAnswer"
	cmdRevealAnswer      commandType = "revealAnswer"
	cmdAwardParticipant  commandType = "awardParticipant"
	cmdParticipantWrong  commandType = "participantWrong"
	cmdNextRound         commandType = "nextRound"
	cmdSelectChallenger  commandType = "selectChallenger"
	cmdClearChallenger   commandType = "clearChallenger"
	cmdChallengerCorrect commandType = "challengerCorrect"
	cmdChallengerWrong   commandType = "challengerWrong"
	cmdToggleLeaderboard commandType = "toggleLeaderboard"
	cmdResetAllScores    commandType = "resetAllScores"
	cmdClearAllPlayers   commandType = "clearAllPlayers"
	cmdResetQsets        commandType = "resetQsets"

	// Anything the switch below doesn't recognize. Dispatch treats it
	// as a no-op rather than an error.
	cmdUnknown commandType = ""
)

// Command is the decoded, typed form of an inbound message. Exactly the
// fields relevant to Type are populated.
type Command struct {
	Type    commandType
	Stage   string
	Name    string
	Index   int
	Delta   int
	Seconds int
	Visible bool
	Set     QuestionSet
}

// parseCommand decodes one wire message into a Command. A returned
// error means the payload was malformed and should be logged and
// dropped; an unrecognized type is not an error.
func parseCommand(raw []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Command{}, err
	}

	switch commandType(env.Type) {
	case cmdSetStage:
		var stage string
		if err := json.Unmarshal(env.Data, &stage); err != nil {
			return Command{}, err
		}
		return Command{Type: cmdSetStage, Stage: stage}, nil

	case cmdAddPlayer:
		var name string
		if err := json.Unmarshal(env.Data, &name); err != nil {
			return Command{}, err
		}
		return Command{Type: cmdAddPlayer, Name: name}, nil

	case cmdRemovePlayer:
		idx, err := requiredInt(env.Data)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: cmdRemovePlayer, Index: idx}, nil

	case cmdAdjustPts:
		var data struct {
			Idx   int `json:"idx"`
			Delta int `json:"delta"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Command{}, err
		}
		return Command{Type: cmdAdjustPts, Index: data.Idx, Delta: data.Delta}, nil

	case cmdSelectQset:
		idx, err := requiredInt(env.Data)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: cmdSelectQset, Index: idx}, nil

	case cmdAddQset:
		var set QuestionSet
		if err := json.Unmarshal(env.Data, &set); err != nil {
			return Command{}, err
		}
		return Command{Type: cmdAddQset, Set: set}, nil

	case cmdStartTimer:
		seconds, err := optionalInt(env.Data)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: cmdStartTimer, Seconds: seconds}, nil

	case cmdResetTimer:
		seconds, err := optionalInt(env.Data)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: cmdResetTimer, Seconds: seconds}, nil

	case cmdSelectChallenger:
		var name string
		if err := json.Unmarshal(env.Data, &name); err != nil {
			return Command{}, err
		}
		return Command{Type: cmdSelectChallenger, Name: name}, nil

	case cmdToggleLeaderboard:
		var visible bool
		if err := json.Unmarshal(env.Data, &visible); err != nil {
			return Command{}, err
		}
		return Command{Type: cmdToggleLeaderboard, Visible: visible}, nil

	case cmdPickRandom, cmdStopTimer, cmdLockAnswer, cmdRevealAnswer,
		cmdAwardParticipant, cmdParticipantWrong, cmdNextRound,
		cmdClearChallenger, cmdChallengerCorrect, cmdChallengerWrong,
		cmdResetAllScores, cmdClearAllPlayers, cmdResetQsets:
		return Command{Type: commandType(env.Type)}, nil

	default:
		return Command{Type: cmdUnknown}, nil
	}
}

func requiredInt(data json.RawMessage) (int, error) {
	var n int
	err := json.Unmarshal(data, &n)
	return n, err
}

// optionalInt tolerates a missing or null value, which callers map to a
// default.
func optionalInt(data json.RawMessage) (int, error) {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0, nil
	}
	return requiredInt(data)
}
