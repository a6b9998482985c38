package domain

// GameState is a player's cumulative local game progress
type GameState struct {
	Score          int64  `json:"score"`
	Streak         int    `json:"streak"`
	WordsGuessed   []int  `json:"words_guessed"`
	HintsUsed      int    `json:"hints_used"`
	LastPlayedDate string `json:"last_played_date,omitempty"` // YYYY-MM-DD
}

// GuessResult reports which parts of a guess were correct
type GuessResult struct {
	CountryCorrect bool `json:"country_correct"`
	MeaningCorrect bool `json:"meaning_correct"`
}

// Scoring rules. Country points depend on game mode, a correct meaning
// earns a flat bonus on top.
const (
	PointsCountryDaily   = 3
	PointsCountryEndless = 1
	PointsMeaningBonus   = 5
)

// Apply updates the state for one guess and returns the points earned.
// An incorrect country guess resets the streak.
func (s *GameState) Apply(result GuessResult, wordID, hintsUsed int, dailyChallenge bool) int64 {
	var points int64

	if result.CountryCorrect {
		if dailyChallenge {
			points = PointsCountryDaily
		} else {
			points = PointsCountryEndless
		}
		s.Streak++
		if !s.hasGuessed(wordID) {
			s.WordsGuessed = append(s.WordsGuessed, wordID)
		}
	} else {
		s.Streak = 0
	}

	if result.MeaningCorrect {
		points += PointsMeaningBonus
	}

	s.Score += points
	s.HintsUsed += hintsUsed
	return points
}

func (s *GameState) hasGuessed(wordID int) bool {
	for _, id := range s.WordsGuessed {
		if id == wordID {
			return true
		}
	}
	return false
}
