package direct

import "testing"

func TestOrderPairNormalizes(t *testing.T) {
	cases := []struct {
		a, b   int
		u1, u2 int
	}{
		{1, 2, 1, 2},
		{2, 1, 1, 2},
		{7, 7, 7, 7},
	}
	for _, tc := range cases {
		u1, u2 := orderPair(tc.a, tc.b)
		if u1 != tc.u1 || u2 != tc.u2 {
			t.Fatalf("orderPair(%d, %d) = (%d, %d), want (%d, %d)",
				tc.a, tc.b, u1, u2, tc.u1, tc.u2)
		}
	}
}
