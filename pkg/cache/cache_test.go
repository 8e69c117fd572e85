package cache

import "testing"

func TestMetrics_HitRate(t *testing.T) {
	tests := []struct {
		name    string
		metrics Metrics
		want    float64
	}{
		{"empty", Metrics{}, 0},
		{"all hits", Metrics{Hits: 4}, 1},
		{"mixed", Metrics{Hits: 3, Misses: 1}, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.metrics.HitRate(); got != tt.want {
				t.Errorf("HitRate() = %v, want %v", got, tt.want)
			}
		})
	}
}
