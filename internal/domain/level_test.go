package domain

import "testing"

func TestLevelThresholds(t *testing.T) {
	cases := []struct {
		points int64
		want   int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{900, 4},
		{10000, 11},
	}
	for _, tc := range cases {
		if got := Level(tc.points); got != tc.want {
			t.Fatalf("Level(%d) = %d, want %d", tc.points, got, tc.want)
		}
	}
}

func TestLevelIsMonotonic(t *testing.T) {
	prev := Level(0)
	for p := int64(1); p <= 50000; p += 7 {
		cur := Level(p)
		if cur < prev {
			t.Fatalf("level dropped from %d to %d at %d points", prev, cur, p)
		}
		prev = cur
	}
}

func TestPointsForLevelInvertsLevel(t *testing.T) {
	for n := 1; n <= 20; n++ {
		// reaching n² * 100 points puts a player on level n+1
		if got := Level(PointsForLevel(n)); got != n+1 {
			t.Fatalf("Level(PointsForLevel(%d)) = %d, want %d", n, got, n+1)
		}
	}
	if NextLevelPoints(3) != 1600 {
		t.Fatalf("next level points for 3: %d", NextLevelPoints(3))
	}
}
