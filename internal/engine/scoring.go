// internal/engine/scoring.go
package engine

const (
	majorityBonus = 3

	BonusMostCards  = "most_cards"
	BonusTwoOfClubs = "two_of_clubs"
)

// TeamScore is one team's breakdown for a finished round.
type TeamScore struct {
	Team         int      `json:"team"`
	Points       int      `json:"points"`
	CardPoints   int      `json:"cardPoints"`
	TakenCount   int      `json:"takenCount"`
	ScoringCards []Card   `json:"scoringCards"`
	ZingCount    int      `json:"zingCount"`
	ZingPoints   int      `json:"zingPoints"`
	Bonus        int      `json:"bonus"`
	Players      []string `json:"players"`
}

// RoundScore is the result of computeRoundScores. BonusTeam is -1 when no team got the
// majority bonus.
type RoundScore struct {
	Teams       [TeamCount]TeamScore `json:"teams"`
	BonusTeam   int                  `json:"bonusTeam"`
	BonusReason string               `json:"bonusReason,omitempty"`
}

// Totals returns the per-team round points, bonus included.
func (r RoundScore) Totals() [TeamCount]int {
	var out [TeamCount]int
	for i, t := range r.Teams {
		out[i] = t.Points
	}
	return out
}

// IsRoundOver reports whether the deck, every hand and the talon are empty.
func IsRoundOver(g *Game) bool {
	return len(g.Deck) == 0 && g.AllHandsEmpty() && len(g.Talon) == 0
}

// ComputeRoundScores sums captured card points and zing points per team and applies the
// single +3 bonus: to the team with strictly more captured cards, else to the team holding
// the two of clubs.
func ComputeRoundScores(g *Game) RoundScore {
	rs := RoundScore{BonusTeam: -1}
	twoOfClubs := NewCard(SuitClubs, RankTwo)
	clubsTeam := -1

	for t := range rs.Teams {
		rs.Teams[t] = TeamScore{Team: t, ScoringCards: []Card{}, Players: []string{}}
	}
	for _, p := range g.seated() {
		ts := &rs.Teams[p.Team]
		ts.Players = append(ts.Players, p.Name)
		ts.TakenCount += len(p.Taken)
		for _, c := range p.Taken {
			if pts := c.Points(); pts > 0 {
				ts.CardPoints += pts
				ts.ScoringCards = append(ts.ScoringCards, c)
			}
			if c == twoOfClubs {
				clubsTeam = p.Team
			}
		}
	}
	for t := range rs.Teams {
		ts := &rs.Teams[t]
		ts.ZingCount = g.RoundZing[t].Count
		ts.ZingPoints = g.RoundZing[t].Points
		ts.Points = ts.CardPoints + ts.ZingPoints
	}

	switch c0, c1 := rs.Teams[0].TakenCount, rs.Teams[1].TakenCount; {
	case c0 > c1:
		rs.BonusTeam, rs.BonusReason = 0, BonusMostCards
	case c1 > c0:
		rs.BonusTeam, rs.BonusReason = 1, BonusMostCards
	case clubsTeam >= 0:
		rs.BonusTeam, rs.BonusReason = clubsTeam, BonusTwoOfClubs
	}
	if rs.BonusTeam >= 0 {
		rs.Teams[rs.BonusTeam].Bonus = majorityBonus
		rs.Teams[rs.BonusTeam].Points += majorityBonus
	}
	return rs
}

// ApplyRoundScore adds a finished round to the cumulative scores and records it.
func ApplyRoundScore(g *Game, rs RoundScore) {
	for t, pts := range rs.Totals() {
		g.Scores[t] += pts
	}
	g.LastRound = &rs
}

// MatchWinner decides whether the match is over. A single team at or above the target
// wins; when both are there the higher score wins. Equal scores at or above the target
// return ok=false and the match continues with another round.
func MatchWinner(scores [TeamCount]int, target int) (winner int, ok bool) {
	r0, r1 := scores[0] >= target, scores[1] >= target
	switch {
	case r0 && !r1:
		return 0, true
	case r1 && !r0:
		return 1, true
	case r0 && r1 && scores[0] != scores[1]:
		if scores[0] > scores[1] {
			return 0, true
		}
		return 1, true
	}
	return -1, false
}
