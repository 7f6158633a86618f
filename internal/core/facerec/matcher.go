package facerec

// DefaultMatchThreshold is the maximum Euclidean distance at which a match
// is usable for attendance. Empirically chosen for normalized 128-dimension
// face embeddings; a distance at or above the threshold means "unknown".
const DefaultMatchThreshold = 0.6

// FindBestMatch scans the known embeddings and returns the index and distance
// of the closest one. Exact ties keep the lowest index. Returns ok == false
// when known is empty or no distance could be computed (dimension mismatch).
//
// The threshold is intentionally NOT applied here; callers decide whether the
// returned distance is usable.
func FindBestMatch(query Embedding, known []Embedding) (index int, distance float64, ok bool) {
	index = -1
	for i, candidate := range known {
		d, err := EuclideanDistance(query, candidate)
		if err != nil {
			continue
		}
		if !ok || d < distance {
			index = i
			distance = d
			ok = true
		}
	}
	return index, distance, ok
}
