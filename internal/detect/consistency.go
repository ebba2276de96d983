package detect

// ConsistencyReport is the diff result across trials of one probe.
type ConsistencyReport struct {
	Consistent     bool
	DistinctValues int
}

// CompareTrials diffs full buffers across trials of an identical
// deterministic probe. Any divergence under an unchanged environment is
// dynamic noise, never legitimate variance of the same math.
func CompareTrials(trials ...[]byte) ConsistencyReport {
	seen := make(map[string]struct{}, len(trials))
	for _, t := range trials {
		seen[string(t)] = struct{}{}
	}
	return ConsistencyReport{
		Consistent:     len(seen) <= 1,
		DistinctValues: len(seen),
	}
}

// CompareStrings is CompareTrials over already-hashed trial values.
func CompareStrings(trials ...string) ConsistencyReport {
	seen := make(map[string]struct{}, len(trials))
	for _, t := range trials {
		seen[t] = struct{}{}
	}
	return ConsistencyReport{
		Consistent:     len(seen) <= 1,
		DistinctValues: len(seen),
	}
}

// InAllowlist reports baseline membership: the webgl persistent probe is
// a single render checked against known-good reference hashes, not a
// multi-trial comparison.
func InAllowlist(hash string, allow []string) bool {
	for _, a := range allow {
		if hash == a {
			return true
		}
	}
	return false
}
