package main

// QuestionSet is one group of three statements, exactly one of which is
// the lie.
type QuestionSet struct {
	A       string `json:"a"`
	B       string `json:"b"`
	C       string `json:"c"`
	Lie     string `json:"lie"`
	Explain string `json:"explain"`
	Used    bool   `json:"used"`
}

// The sets shipped with the game. Kept pristine; the live state works on
// copies so resetQuestionSets can restore them.
var defaultSets = []QuestionSet{
	{
		A:       "The Eiffel Tower can grow 15cm taller in summer due to heat expansion",
		B:       "Honey never spoils - edible samples have been found in Egyptian pyramids",
		C:       "Bananas grow on trees",
		Lie:     "c",
		Explain: "Bananas grow on large herbaceous plants, not true trees!",
	},
	{
		A:       "Octopuses have three hearts",
		B:       "A group of flamingos is called a flamboyance",
		C:       "Lightning never strikes the same place twice",
		Lie:     "c",
		Explain: "Lightning absolutely can and does strike the same place multiple times!",
	},
	{
		A:       "Cleopatra lived closer in time to the Moon landing than to the building of the Great Pyramid",
		B:       "A day on Venus is longer than a year on Venus",
		C:       "Mount Everest is the tallest mountain measured from base to peak",
		Lie:     "c",
		Explain: "Mauna Kea is tallest from base to peak - Everest is tallest from sea level!",
	},
	{
		A:       "Sharks are older than trees - they predate trees by ~50 million years",
		B:       "Wombat poop is cube-shaped",
		C:       "The Great Wall of China is visible from space with the naked eye",
		Lie:     "c",
		Explain: "The Great Wall is too narrow to be visible from space without aid!",
	},
}

func newDefaultSets() []*QuestionSet {
	sets := make([]*QuestionSet, len(defaultSets))
	for i := range defaultSets {
		set := defaultSets[i]
		sets[i] = &set
	}
	return sets
}

// allQuestionSets lists built-in sets followed by custom sets, in
// insertion order. Positional indexes over this list are the wire
// addressing scheme for selectQset.
func (s *GameState) allQuestionSets() []*QuestionSet {
	all := make([]*QuestionSet, 0, len(s.DefaultSets)+len(s.QuestionSets))
	all = append(all, s.DefaultSets...)
	all = append(all, s.QuestionSets...)
	return all
}

// addQuestionSet appends a custom set. Statement content is not
// validated; the admin client owns that.
func (s *GameState) addQuestionSet(set QuestionSet) {
	set.Used = false
	s.QuestionSets = append(s.QuestionSets, &set)
}

// selectQuestionSet makes the i-th set current. Out-of-range indexes
// are ignored.
func (s *GameState) selectQuestionSet(i int) bool {
	all := s.allQuestionSets()
	if i < 0 || i >= len(all) {
		return false
	}
	s.CurrentSet = all[i]
	return true
}

// autoAdvanceQuestionSet makes the first unused set current, built-in
// sets before custom ones. With no unused set left, the current set is
// left as-is.
func (s *GameState) autoAdvanceQuestionSet() {
	for _, set := range s.allQuestionSets() {
		if !set.Used {
			s.CurrentSet = set
			return
		}
	}
}

// resetQuestionSets restores the built-in sets to their pristine state,
// discards all custom sets, and clears the current set.
func (s *GameState) resetQuestionSets() {
	s.DefaultSets = newDefaultSets()
	s.QuestionSets = []*QuestionSet{}
	s.CurrentSet = nil
}
