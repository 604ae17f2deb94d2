package ranking_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/domain"
	"planner/internal/ranking"
)

func TestComputeScoreFixture(t *testing.T) {
	assert.InDelta(t, 4.8, ranking.ComputeScore(3, 4, 0.8, 2), 1e-9)
	assert.False(t, ranking.Clamped(3, 4, 0.8, 2))
}

func TestComputeScoreClampsInputs(t *testing.T) {
	cases := []struct {
		name       string
		priority   int
		impact     int
		confidence float64
		effort     float64
		want       float64
	}{
		{"priority low", 0, 1, 1, 1, 1},
		{"priority high", 9, 1, 1, 1, 5},
		{"impact low", 1, -3, 1, 1, 1},
		{"impact high", 1, 7, 1, 1, 5},
		{"confidence negative", 1, 1, -0.5, 1, 0},
		{"confidence above one", 1, 1, 3, 1, 1},
		{"confidence nan", 5, 5, math.NaN(), 1, 0},
		{"effort zero", 1, 1, 1, 0, 10},
		{"effort negative", 1, 1, 1, -4, 10},
		{"effort tiny", 1, 1, 1, 0.01, 10},
		{"effort nan", 1, 1, 1, math.NaN(), 10},
		{"effort infinite", 5, 5, 1, math.Inf(1), 0},
		{"effort negative infinite", 1, 1, 1, math.Inf(-1), 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ranking.ComputeScore(tc.priority, tc.impact, tc.confidence, tc.effort)
			assert.InDelta(t, tc.want, got, 1e-9)
			assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
			assert.GreaterOrEqual(t, got, 0.0)
		})
	}
	assert.True(t, ranking.Clamped(0, 3, 0.5, 1))
	assert.True(t, ranking.Clamped(3, 3, math.NaN(), 1))
	assert.True(t, ranking.Clamped(3, 3, 0.5, 0))
	assert.False(t, ranking.Clamped(3, 3, 0.5, math.Inf(1)))
}

func TestComputeScoreMonotone(t *testing.T) {
	for p := 1; p < 5; p++ {
		assert.LessOrEqual(t, ranking.ComputeScore(p, 3, 0.7, 2), ranking.ComputeScore(p+1, 3, 0.7, 2))
	}
	for i := 1; i < 5; i++ {
		assert.LessOrEqual(t, ranking.ComputeScore(3, i, 0.7, 2), ranking.ComputeScore(3, i+1, 0.7, 2))
	}
	for c := 0.0; c < 1.0; c += 0.1 {
		assert.LessOrEqual(t, ranking.ComputeScore(3, 3, c, 2), ranking.ComputeScore(3, 3, c+0.1, 2))
	}
	for _, e := range []float64{0.1, 0.5, 1, 2.5, 8, 40} {
		assert.GreaterOrEqual(t, ranking.ComputeScore(3, 3, 0.7, e), ranking.ComputeScore(3, 3, 0.7, e*2))
	}
}

func day(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.Local)
}

func TestClassify(t *testing.T) {
	now := day(2024, 6, 15, 9, 0)
	ptr := func(t time.Time) *time.Time { return &t }
	assert.Equal(t, ranking.NoDueDate, ranking.Classify(nil, now))
	assert.Equal(t, ranking.Overdue, ranking.Classify(ptr(day(2024, 6, 14, 23, 59)), now))
	assert.Equal(t, ranking.Today, ranking.Classify(ptr(day(2024, 6, 15, 0, 1)), now))
	assert.Equal(t, ranking.Today, ranking.Classify(ptr(day(2024, 6, 15, 23, 59)), now))
	assert.Equal(t, ranking.Tomorrow, ranking.Classify(ptr(day(2024, 6, 16, 0, 0)), now))
	assert.Equal(t, ranking.Future, ranking.Classify(ptr(day(2024, 6, 20, 0, 0)), now))
}

func TestClassifyUsesNowLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	now := time.Date(2024, 6, 15, 1, 0, 0, 0, tokyo)
	// 2024-06-14 18:00 UTC is 2024-06-15 03:00 in JST.
	due := time.Date(2024, 6, 14, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, ranking.Today, ranking.Classify(&due, now))
}

func TestClassifyAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	now := time.Date(2024, 3, 9, 23, 30, 0, 0, loc)
	due := time.Date(2024, 3, 10, 23, 30, 0, 0, loc)
	assert.Equal(t, ranking.Tomorrow, ranking.Classify(&due, now))
	assert.Equal(t, 1, ranking.DaysUntil(due, now))
}

func TestSuppression(t *testing.T) {
	now := day(2024, 6, 15, 9, 0)
	past := day(2024, 6, 10, 12, 0)
	// raw class ignores status
	assert.Equal(t, ranking.Overdue, ranking.Classify(&past, now))
	assert.True(t, ranking.Suppressed(domain.StatusDone))
	assert.True(t, ranking.Suppressed(domain.StatusBlocked))
	assert.False(t, ranking.Suppressed(domain.StatusDoing))
	assert.False(t, ranking.IsOverdue(&past, domain.StatusDone, now))
	assert.True(t, ranking.IsOverdue(&past, domain.StatusTodo, now))

	tasks := []domain.Task{
		{ID: "a", Status: domain.StatusTodo, Due: &past},
		{ID: "b", Status: domain.StatusDone, Due: &past},
		{ID: "c", Status: domain.StatusBlocked, Due: &past},
		{ID: "d", Status: domain.StatusInbox},
	}
	assert.Equal(t, 1, ranking.CountOverdue(tasks, now))
}

func TestDueClassText(t *testing.T) {
	data, err := json.Marshal(map[string]ranking.DueClass{"c": ranking.Tomorrow})
	require.NoError(t, err)
	assert.JSONEq(t, `{"c":"tomorrow"}`, string(data))

	var out map[string]ranking.DueClass
	require.NoError(t, json.Unmarshal([]byte(`{"c":"Overdue"}`), &out))
	assert.Equal(t, ranking.Overdue, out["c"])
	_, err = ranking.ParseDueClass("someday")
	assert.Error(t, err)
}

func TestDaysUntil(t *testing.T) {
	now := day(2024, 6, 15, 9, 0)
	assert.Equal(t, 0, ranking.DaysUntil(day(2024, 6, 15, 23, 0), now))
	assert.Equal(t, 5, ranking.DaysUntil(day(2024, 6, 20, 0, 0), now))
	assert.Equal(t, -2, ranking.DaysUntil(day(2024, 6, 13, 0, 0), now))
}

func TestDaysUntilFarFuture(t *testing.T) {
	now := day(2024, 6, 15, 9, 0)
	far := now.AddDate(0, 0, 300000000)
	assert.Equal(t, 300000000, ranking.DaysUntil(far, now))
	assert.Equal(t, -300000000, ranking.DaysUntil(now, far))
	assert.Equal(t, 2913007, ranking.DaysUntil(day(9999, 12, 31, 0, 0), now))
}

func TestSortOrder(t *testing.T) {
	d1 := day(2024, 6, 1, 0, 0)
	d2 := day(2024, 6, 5, 0, 0)
	tasks := []domain.Task{
		{ID: "undated", Score: 2, CreatedAt: "2024-01-01T00:00:00Z"},
		{ID: "late", Score: 2, Due: &d2, CreatedAt: "2024-01-01T00:00:00Z"},
		{ID: "top", Score: 9, CreatedAt: "2024-01-03T00:00:00Z"},
		{ID: "early", Score: 2, Due: &d1, CreatedAt: "2024-01-02T00:00:00Z"},
		{ID: "undated-old", Score: 2, CreatedAt: "2023-12-31T00:00:00Z"},
		{ID: "tie-second", Score: 1, CreatedAt: "2024-01-01T00:00:00Z"},
		{ID: "tie-first", Score: 1, CreatedAt: "2024-01-01T00:00:00Z"},
	}
	// equal timestamps keep input order
	tasks[5], tasks[6] = tasks[6], tasks[5]
	ranking.Sort(tasks)
	var ids []string
	for _, tk := range tasks {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []string{"top", "early", "late", "undated-old", "undated", "tie-first", "tie-second"}, ids)
}

func TestSortByDueAndPriority(t *testing.T) {
	d1 := day(2024, 6, 1, 0, 0)
	d2 := day(2024, 6, 5, 0, 0)
	tasks := []domain.Task{
		{ID: "a", Priority: 1, Score: 5, Due: &d2},
		{ID: "b", Priority: 5, Score: 1},
		{ID: "c", Priority: 3, Score: 2, Due: &d1},
	}
	ranking.SortByDue(tasks)
	assert.Equal(t, "c", tasks[0].ID)
	assert.Equal(t, "a", tasks[1].ID)
	assert.Equal(t, "b", tasks[2].ID)

	ranking.SortByPriority(tasks)
	assert.Equal(t, "b", tasks[0].ID)
	assert.Equal(t, "c", tasks[1].ID)
	assert.Equal(t, "a", tasks[2].ID)
}
