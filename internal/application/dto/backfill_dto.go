package dto

// RunStats tracks counters for one backfill run
type RunStats struct {
	Subjects  int // subjects offered to the run
	Claimed   int // successful journal claims
	Batches   int // batches fetched and archived
	Posts     int // posts appended across all batches
	Skipped   int // subjects passed over (journal busy or nothing to seed from)
	Exhausted int // subjects that reached the floor or the end of the feed
	Failed    int // subjects that ended with an error
}

// Merge adds another run's counters into s. Subjects is not merged; it is
// set once for the whole run.
func (s *RunStats) Merge(other RunStats) {
	s.Claimed += other.Claimed
	s.Batches += other.Batches
	s.Posts += other.Posts
	s.Skipped += other.Skipped
	s.Exhausted += other.Exhausted
	s.Failed += other.Failed
}

// HasFailures reports whether any subject ended with an error
func (s RunStats) HasFailures() bool {
	return s.Failed > 0
}
