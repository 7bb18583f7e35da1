package ranking

import (
	"math/rand"
	"testing"

	"webhookworker/internal/models"
)

func records(ids ...int64) []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, len(ids))
	for i, id := range ids {
		out[i] = models.NormalizedRecord{ID: id, Status: models.StatusProcessed}
	}

	return out
}

func ids(recs []models.NormalizedRecord) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}

	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func TestSelectTop(t *testing.T) {
	tests := []struct {
		name  string
		input []int64
		want  []int64
		limit int
	}{
		{name: "Lowest two ascending", input: []int64{1, 10, 3}, limit: 2, want: []int64{1, 3}},
		{name: "Limit equals size", input: []int64{9, 2, 5}, limit: 3, want: []int64{2, 5, 9}},
		{name: "Limit exceeds size", input: []int64{4, 1}, limit: 10, want: []int64{1, 4}},
		{name: "Zero limit", input: []int64{4, 1}, limit: 0, want: []int64{}},
		{name: "Negative limit", input: []int64{4, 1}, limit: -3, want: []int64{}},
		{name: "Empty input", input: nil, limit: 5, want: []int64{}},
		{name: "Negative ids", input: []int64{0, -2, 7}, limit: 2, want: []int64{-2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectTop(records(tt.input...), tt.limit)
			if got == nil {
				t.Fatal("SelectTop returned nil slice")
			}

			if !equalIDs(ids(got), tt.want) {
				t.Errorf("SelectTop = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestSelectTop_NotDescending(t *testing.T) {
	got := SelectTop(records(1, 10, 3), 2)

	if equalIDs(ids(got), []int64{10, 3}) {
		t.Fatal("SelectTop kept the highest ids; comparator is inverted")
	}
}

func TestSelectTop_StableTies(t *testing.T) {
	input := []models.NormalizedRecord{
		{ID: 2, Title: "first"},
		{ID: 1, Title: "one"},
		{ID: 2, Title: "second"},
	}

	got := SelectTop(input, 3)
	if got[1].Title != "first" || got[2].Title != "second" {
		t.Errorf("ties reordered: %+v", got)
	}
}

func TestSelectTop_DoesNotMutateInput(t *testing.T) {
	input := records(5, 3, 1)

	SelectTop(input, 2)

	if !equalIDs(ids(input), []int64{5, 3, 1}) {
		t.Errorf("input reordered to %v", ids(input))
	}
}

func TestSelectTop_SortedAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 50; round++ {
		n := rng.Intn(40)
		perm := rng.Perm(n)

		input := make([]int64, n)
		for i, p := range perm {
			input[i] = int64(p) * 3
		}

		limit := rng.Intn(50) - 5
		got := ids(SelectTop(records(input...), limit))

		want := min(max(limit, 0), n)
		if len(got) != want {
			t.Fatalf("round %d: len = %d, want %d", round, len(got), want)
		}

		for i := 1; i < len(got); i++ {
			if got[i-1] >= got[i] {
				t.Fatalf("round %d: not strictly ascending: %v", round, got)
			}
		}

		// the kept ids must be the smallest ones
		for i, id := range got {
			if id != int64(i)*3 {
				t.Fatalf("round %d: got %v, want lowest ids", round, got)
			}
		}
	}
}
