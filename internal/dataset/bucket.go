package dataset

// Bucket is a closed steering-angle range and the directory label frames in it go to.
type Bucket struct {
	Min, Max int
	Label    string
}

// buckets is fixed. Angles outside every range (40-49, 131-140) have no bucket
// and their frames are not kept.
var buckets = [...]Bucket{
	{Min: 50, Max: 69, Label: "50_69"},
	{Min: 70, Max: 89, Label: "70_89"},
	{Min: 90, Max: 90, Label: "90"},
	{Min: 91, Max: 110, Label: "91_110"},
	{Min: 111, Max: 130, Label: "111_130"},
}

// Buckets returns a copy of the bucket table.
func Buckets() []Bucket {
	out := make([]Bucket, len(buckets))
	copy(out, buckets[:])
	return out
}

// Labels returns the label of every bucket, in table order.
func Labels() []string {
	out := make([]string, len(buckets))
	for i, b := range buckets {
		out[i] = b.Label
	}
	return out
}

// Classify returns the label of the bucket holding angle. ok is false when the
// angle falls in a gap.
func Classify(angle int) (label string, ok bool) {
	for _, b := range buckets {
		if angle >= b.Min && angle <= b.Max {
			return b.Label, true
		}
	}
	return "", false
}
