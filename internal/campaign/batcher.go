package campaign

// SplitBatches partitions emails into groups of at most maxSize, preserving
// order. For N inputs it yields ceil(N/maxSize) batches, all full except
// possibly the last; an empty input yields no batches. Pure function.
func SplitBatches(emails []string, maxSize int) [][]string {
	if maxSize < 1 || len(emails) == 0 {
		return nil
	}

	batches := make([][]string, 0, (len(emails)+maxSize-1)/maxSize)
	for start := 0; start < len(emails); start += maxSize {
		end := start + maxSize
		if end > len(emails) {
			end = len(emails)
		}
		batches = append(batches, emails[start:end])
	}
	return batches
}
