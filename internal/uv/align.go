package uv

import "sort"

// Align merges provider results onto one ascending timeline of hour labels.
// Every bucket carries an entry for every invoked provider; providers without
// a value at that hour map to nil. Results with an error contribute no labels.
func Align(results []ProviderResult) []HourBucket {
	values := make(map[string]map[string]*float64)

	for _, r := range results {
		if r.Error != "" {
			continue
		}
		for _, s := range r.Samples {
			row, ok := values[s.Time]
			if !ok {
				row = make(map[string]*float64)
				values[s.Time] = row
			}
			if existing, seen := row[r.Name]; seen && existing != nil {
				continue
			}
			row[r.Name] = s.Value
		}
	}

	labels := make([]string, 0, len(values))
	for label := range values {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	buckets := make([]HourBucket, 0, len(labels))
	for _, label := range labels {
		row := values[label]
		providers := make(map[string]*float64, len(results))
		for _, r := range results {
			var v *float64
			if val := row[r.Name]; val != nil {
				v = Float(*val)
			}
			providers[r.Name] = v
		}
		buckets = append(buckets, HourBucket{
			Time:      label,
			Providers: providers,
			Outliers:  []string{},
		})
	}

	return buckets
}
