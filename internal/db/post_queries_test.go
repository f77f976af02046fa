package db

import "testing"

func TestClampClaimBatch(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   int
		want int
	}{
		{"zero", 0, MinClaimBatchSize},
		{"negative", -5, MinClaimBatchSize},
		{"minimum", MinClaimBatchSize, MinClaimBatchSize},
		{"within bounds", 50, 50},
		{"maximum", MaxClaimBatchSize, MaxClaimBatchSize},
		{"above maximum", 9999, MaxClaimBatchSize},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := clampClaimBatch(tc.in); got != tc.want {
				t.Fatalf("clampClaimBatch(%d) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}
