package models

import "time"

// InjuryStatus buckets match the league's official report designations
type InjuryStatus string

const (
	InjuryOut          InjuryStatus = "out"
	InjuryDoubtful     InjuryStatus = "doubtful"
	InjuryQuestionable InjuryStatus = "questionable"
	InjuryProbable     InjuryStatus = "probable"
)

// PlayerInjury is one line of a team's published injury report
type PlayerInjury struct {
	Player   string       `json:"player"`
	Position string       `json:"position"`
	Status   InjuryStatus `json:"status"`
}

// InjuryReport is a team's report as published at a practice-report cutoff
type InjuryReport struct {
	Team        string         `json:"team"`
	Injuries    []PlayerInjury `json:"injuries"`
	PublishedAt time.Time      `json:"published_at"`
}

// positionWeights reflect roughly how much a missing starter at each spot
// moves the spread.
var positionWeights = map[string]float64{
	"QB": 5.0,
	"RB": 1.0,
	"WR": 1.2,
	"TE": 0.8,
	"OL": 1.0,
	"DL": 1.0,
	"LB": 0.9,
	"CB": 1.1,
	"S":  0.9,
	"K":  0.3,
}

var statusWeights = map[InjuryStatus]float64{
	InjuryOut:          1.0,
	InjuryDoubtful:     0.75,
	InjuryQuestionable: 0.4,
	InjuryProbable:     0.1,
}

// ImpactScore collapses a report into a single severity number the
// feature builder consumes.
func (r *InjuryReport) ImpactScore() float64 {
	var score float64
	for _, inj := range r.Injuries {
		pw, ok := positionWeights[inj.Position]
		if !ok {
			pw = 0.7
		}
		score += pw * statusWeights[inj.Status]
	}
	return score
}
