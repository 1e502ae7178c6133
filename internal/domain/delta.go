package domain

// VoteDelta is the change to apply to an item's counters for one vote transition.
type VoteDelta struct {
	Upvotes   int
	Downvotes int
	Result    Vote
}

func (d VoteDelta) IsZero() bool {
	return d.Upvotes == 0 && d.Downvotes == 0
}

// ComputeDelta returns the counter change for moving from previous to requested.
// Requesting the vote already held retracts it.
func ComputeDelta(previous, requested Vote) VoteDelta {
	if requested == previous {
		requested = VoteNone
	}

	var d VoteDelta
	switch previous {
	case VoteUp:
		d.Upvotes--
	case VoteDown:
		d.Downvotes--
	}
	switch requested {
	case VoteUp:
		d.Upvotes++
	case VoteDown:
		d.Downvotes++
	}
	d.Result = requested
	return d
}

// ResultingVote is the vote a fingerprint holds after requesting requested.
func ResultingVote(previous, requested Vote) Vote {
	return ComputeDelta(previous, requested).Result
}
