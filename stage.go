package main

// StageConfig holds the scoring parameters for one difficulty stage.
type StageConfig struct {
	Name             string `json:"name"`
	Points           int    `json:"pts"`
	ChallengePoints  int    `json:"chalPts"`
	ChallengePenalty int    `json:"chalFail"`
}

var stages = map[string]StageConfig{
	"easy":    {Name: "EASY", Points: 10, ChallengePoints: 5, ChallengePenalty: 5},
	"medium":  {Name: "MEDIUM", Points: 20, ChallengePoints: 10, ChallengePenalty: 10},
	"hard":    {Name: "HARD", Points: 30, ChallengePoints: 15, ChallengePenalty: 15},
	"extreme": {Name: "EXTREME", Points: 40, ChallengePoints: 20, ChallengePenalty: 20},
}

func stageConfig(key string) (StageConfig, bool) {
	st, ok := stages[key]
	return st, ok
}
