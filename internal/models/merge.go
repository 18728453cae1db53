package models

// MergeStrategy is how a single data key combines with an earlier value when
// two notifications share a dedupe key.
type MergeStrategy int

const (
	// MergeOverwrite replaces the stored value with the incoming one.
	MergeOverwrite MergeStrategy = iota
	// MergeSum adds numeric values, so repeated counters accumulate.
	MergeSum
)

// dataStrategies fixes the merge behavior per data key. Anything not listed
// here overwrites. Keeping the set closed means merge behavior is known from
// the key name alone.
var dataStrategies = map[string]MergeStrategy{
	"count": MergeSum,
}

// MergeData combines the data of a repeated notification into the stored one.
// The result is a new map; neither input is mutated. Keys only present in the
// stored map are kept as-is.
func MergeData(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		if dataStrategies[k] == MergeSum {
			old, okOld := asNumber(merged[k])
			add, okNew := asNumber(v)
			if okOld && okNew {
				merged[k] = old + add
				continue
			}
		}
		merged[k] = v
	}
	return merged
}

// asNumber accepts the numeric types a data map can hold after a JSON
// round-trip through the database.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
