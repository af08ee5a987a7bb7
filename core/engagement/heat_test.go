package engagement

import "testing"

func TestHeatScore(t *testing.T) {
	cases := []struct {
		name     string
		up, down int
		want     int
	}{
		{"no votes is the baseline", 0, 0, 30},
		{"all downvotes stays at the baseline", 0, 5, 30},
		{"all upvotes is the ceiling", 4, 0, 110},
		{"three up one down", 3, 1, 90},
		{"even split", 2, 2, 70},
		{"rounds to nearest", 1, 2, 57}, // 30 + 80/3 = 56.67
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HeatScore(tc.up, tc.down); got != tc.want {
				t.Fatalf("HeatScore(%d, %d) = %d, want %d", tc.up, tc.down, got, tc.want)
			}
		})
	}
}

func TestHeatScoreBounds(t *testing.T) {
	for up := 0; up <= 20; up++ {
		for down := 0; down <= 20; down++ {
			got := HeatScore(up, down)
			if got < 30 || got > 110 {
				t.Fatalf("HeatScore(%d, %d) = %d, outside [30,110]", up, down, got)
			}
		}
	}
}
