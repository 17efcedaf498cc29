package domain

// RankSubmissions assigns standard competition ranks to subs, which must be
// sorted by score descending. Equal scores share a rank and the next rank
// skips accordingly, so scores 90, 90, 70 rank 1, 1, 3.
func RankSubmissions(subs []*Submission) {
	rank := 1
	for i, s := range subs {
		if i > 0 && s.Score < subs[i-1].Score {
			rank = i + 1
		}
		r := rank
		s.Rank = &r
	}
}
