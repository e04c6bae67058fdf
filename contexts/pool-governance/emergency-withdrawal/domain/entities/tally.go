package entities

// Tally is derived live from the current vote rows; it is never stored as a
// counter, so a vote switch can never leave it drifted.
type Tally struct {
	VotesFor       int
	VotesAgainst   int
	EligibleVoters int
	Quorum         int
}

// QuorumFor is the majority of eligible (non-requester) members:
// ceil(eligible / 2).
func QuorumFor(eligibleVoters int) int {
	if eligibleVoters <= 0 {
		return 0
	}
	return (eligibleVoters + 1) / 2
}

func TallyVotes(votes []Vote, eligibleVoters int) Tally {
	tally := Tally{
		EligibleVoters: eligibleVoters,
		Quorum:         QuorumFor(eligibleVoters),
	}
	for _, vote := range votes {
		if vote.Support {
			tally.VotesFor++
		} else {
			tally.VotesAgainst++
		}
	}
	return tally
}

// Approved reports whether the for-bucket has reached quorum.
func (t Tally) Approved() bool {
	return t.Quorum > 0 && t.VotesFor >= t.Quorum
}

// QuorumUnreachable reports whether the against-bucket leaves fewer
// undecided voters than the for-bucket still needs. Once true the request
// can never execute and resolves to rejected ahead of the deadline.
func (t Tally) QuorumUnreachable() bool {
	return t.Quorum > 0 && t.VotesAgainst > t.EligibleVoters-t.Quorum
}
