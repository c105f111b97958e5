package analysis

import "testing"

func TestCalculateLegitimacyScore(t *testing.T) {
	tests := []struct {
		name                       string
		positive, redFlags, critic int
		want                       int
	}{
		{"baseline", 0, 0, 0, 5},
		{"positives capped at three points", 10, 0, 0, 8},
		{"one positive rounds half up", 1, 0, 0, 6},
		{"red flags subtract", 0, 4, 0, 3},
		{"criticals clamp to one", 0, 2, 3, 1},
		{"mixed", 4, 2, 0, 6},
		{"negative counts ignored", -5, -1, -2, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateLegitimacyScore(tt.positive, tt.redFlags, tt.critic)
			if got != tt.want {
				t.Errorf("CalculateLegitimacyScore(%d, %d, %d) = %d, want %d",
					tt.positive, tt.redFlags, tt.critic, got, tt.want)
			}
		})
	}
}
