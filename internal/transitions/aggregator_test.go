package transitions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavecli/internal/dataset"
)

func tableFromCSV(t *testing.T, csv string) *dataset.Table {
	t.Helper()
	table, err := dataset.LoadCSV(strings.NewReader(strings.TrimSpace(csv) + "\n"))
	require.NoError(t, err)
	return table
}

func TestNewAggregator(t *testing.T) {
	tests := []struct {
		name    string
		logger  *slog.Logger
		config  Config
		wantMin int
		wantMax int
		wantTop int
	}{
		{"default config", slog.Default(), DefaultConfig(), 2, 50, 10},
		{"custom config", slog.Default(), Config{MinCategories: 3, MaxCategories: 20, TopN: 5}, 3, 20, 5},
		{"zero fields fall back", nil, Config{}, 2, 50, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(tt.logger, tt.config)

			assert.NotNil(t, agg)
			assert.Equal(t, tt.wantMin, agg.minCategories)
			assert.Equal(t, tt.wantMax, agg.maxCategories)
			assert.Equal(t, tt.wantTop, agg.topN)
			assert.NotNil(t, agg.logger)
		})
	}
}

func TestAggregator_Aggregate(t *testing.T) {
	table := tableFromCSV(t, `
id,W1_mood,W3_mood
1,Happy,Happy
2,Happy,Sad
3,Sad,Sad
4,Happy,Happy
5,Sad,Happy
6,Happy,Happy
7,NA,Happy
8,Sad,
`)

	agg := NewAggregator(slog.Default(), DefaultConfig())
	records, stats, err := agg.Aggregate(context.Background(), table, Request{
		SourceColumn: "W1_mood",
		TargetColumn: "W3_mood",
		Variable:     "mood",
		WaveLabel:    "w1_to_w3",
	})
	require.NoError(t, err)

	// Rows 7 and 8 are incomplete and must be dropped.
	assert.Equal(t, 6, stats.TotalTransitions)
	assert.Equal(t, 4, stats.UniquePatterns)
	require.Len(t, records, 4)

	// Highest count first: Happy->Happy appears three times.
	assert.Equal(t, Record{Source: "Happy", Target: "Happy", Count: 3, Percentage: 50.0}, records[0])

	// Conservation: counts sum to the complete-case total.
	sum := 0
	pctSum := 0.0
	for _, r := range records {
		sum += r.Count
		pctSum += r.Percentage
	}
	assert.Equal(t, stats.TotalTransitions, sum)
	assert.InDelta(t, 100.0, pctSum, 1e-9)

	// Stable rows: 3x Happy->Happy + 1x Sad->Sad out of 6.
	assert.InDelta(t, 100.0*4.0/6.0, stats.StabilityRate, 1e-9)

	assert.Equal(t, "mood", stats.VariableAnalyzed)
	assert.Equal(t, "w1_to_w3", stats.WaveTransition)
	assert.Equal(t, "W1_mood", stats.SourceColumn)
}

func TestAggregator_Aggregate_SortedWithStableTies(t *testing.T) {
	// Zebra->Zebra and Apple->Apple tie at 2; Zebra was seen first and
	// must stay first. Mango->Apple leads with 3.
	table := tableFromCSV(t, `
id,W1_v,W2_v
1,Zebra,Zebra
2,Mango,Apple
3,Apple,Apple
4,Zebra,Zebra
5,Mango,Apple
6,Apple,Apple
7,Mango,Apple
`)

	agg := NewAggregator(slog.Default(), DefaultConfig())
	records, _, err := agg.Aggregate(context.Background(), table, Request{
		SourceColumn: "W1_v",
		TargetColumn: "W2_v",
	})
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "Mango", records[0].Source)
	assert.Equal(t, 3, records[0].Count)
	assert.Equal(t, "Zebra", records[1].Source)
	assert.Equal(t, "Apple", records[2].Source)

	// Counts never increase along the sequence.
	for i := 1; i < len(records); i++ {
		assert.GreaterOrEqual(t, records[i-1].Count, records[i].Count)
	}
}

func TestAggregator_Aggregate_TopPatterns(t *testing.T) {
	table := tableFromCSV(t, `
id,W1_v,W2_v
1,A,A
2,A,B
3,B,A
4,B,B
5,A,C
6,C,A
`)

	agg := NewAggregator(slog.Default(), DefaultConfig())

	t.Run("request override", func(t *testing.T) {
		records, stats, err := agg.Aggregate(context.Background(), table, Request{
			SourceColumn: "W1_v",
			TargetColumn: "W2_v",
			TopN:         2,
		})
		require.NoError(t, err)
		require.Len(t, stats.TopPatterns, 2)
		assert.Equal(t, records[:2], stats.TopPatterns)
	})

	t.Run("default clamps to record count", func(t *testing.T) {
		records, stats, err := agg.Aggregate(context.Background(), table, Request{
			SourceColumn: "W1_v",
			TargetColumn: "W2_v",
		})
		require.NoError(t, err)
		// Six distinct patterns, default cut is 10.
		assert.Equal(t, records, stats.TopPatterns)
	})
}

func TestAggregator_Aggregate_StabilityBounds(t *testing.T) {
	agg := NewAggregator(slog.Default(), DefaultConfig())

	t.Run("all stable", func(t *testing.T) {
		table := tableFromCSV(t, `
id,W1_v,W2_v
1,A,A
2,B,B
3,A,A
`)
		_, stats, err := agg.Aggregate(context.Background(), table, Request{
			SourceColumn: "W1_v", TargetColumn: "W2_v",
		})
		require.NoError(t, err)
		assert.Equal(t, 100.0, stats.StabilityRate)
	})

	t.Run("none stable", func(t *testing.T) {
		table := tableFromCSV(t, `
id,W1_v,W2_v
1,A,B
2,B,A
3,A,B
`)
		_, stats, err := agg.Aggregate(context.Background(), table, Request{
			SourceColumn: "W1_v", TargetColumn: "W2_v",
		})
		require.NoError(t, err)
		assert.Equal(t, 0.0, stats.StabilityRate)
	})
}

func TestAggregator_Aggregate_LargeScenario(t *testing.T) {
	// 1000 respondents over {A, B}; 50 have no target answer.
	table, err := dataset.NewTable([]string{"id", "W1_P", "W2_P"})
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		source := "A"
		if i%2 == 1 {
			source = "B"
		}
		target := dataset.String("B")
		if i%3 == 0 {
			target = dataset.String("A")
		}
		if i < 50 {
			target = dataset.Missing
		}
		require.NoError(t, table.AppendRow([]dataset.Value{
			dataset.String(fmt.Sprintf("%d", i)), dataset.String(source), target,
		}))
	}

	agg := NewAggregator(slog.Default(), DefaultConfig())
	records, stats, err := agg.Aggregate(context.Background(), table, Request{
		SourceColumn: "W1_P",
		TargetColumn: "W2_P",
	})
	require.NoError(t, err)

	assert.Equal(t, 950, stats.TotalTransitions)
	assert.LessOrEqual(t, len(records), 4)

	pctSum := 0.0
	countSum := 0
	for _, r := range records {
		pctSum += r.Percentage
		countSum += r.Count
	}
	assert.InDelta(t, 100.0, pctSum, 1e-9)
	assert.Equal(t, 950, countSum)
}

func TestAggregator_Aggregate_Errors(t *testing.T) {
	agg := NewAggregator(slog.Default(), DefaultConfig())
	ctx := context.Background()

	t.Run("nil table", func(t *testing.T) {
		_, _, err := agg.Aggregate(ctx, nil, Request{SourceColumn: "a", TargetColumn: "b"})
		require.Error(t, err)
	})

	t.Run("missing source column", func(t *testing.T) {
		table := tableFromCSV(t, "id,W1_v,W2_v\n1,A,B\n2,B,A\n")
		_, _, err := agg.Aggregate(ctx, table, Request{SourceColumn: "W9_v", TargetColumn: "W2_v"})
		require.Error(t, err)

		var notFound *dataset.ColumnNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "W9_v", notFound.Column)
	})

	t.Run("single category column", func(t *testing.T) {
		table := tableFromCSV(t, "id,W1_v,W2_v\n1,A,B\n2,A,A\n3,A,B\n")
		_, _, err := agg.Aggregate(ctx, table, Request{SourceColumn: "W1_v", TargetColumn: "W2_v"})
		require.Error(t, err)

		var invalid *ValidationError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "W1_v", invalid.Column)
		assert.Contains(t, err.Error(), "categorical bounds")
	})

	t.Run("too many categories", func(t *testing.T) {
		table, err := dataset.NewTable([]string{"id", "W1_v", "W2_v"})
		require.NoError(t, err)
		for i := 0; i < 60; i++ {
			require.NoError(t, table.AppendRow([]dataset.Value{
				dataset.String(fmt.Sprintf("%d", i)),
				dataset.String(fmt.Sprintf("cat%d", i)),
				dataset.String("X"),
			}))
		}
		_, _, err = agg.Aggregate(ctx, table, Request{SourceColumn: "W1_v", TargetColumn: "W2_v"})
		require.Error(t, err)

		var invalid *ValidationError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "W1_v", invalid.Column)
	})

	t.Run("zero complete cases", func(t *testing.T) {
		table := tableFromCSV(t, `
id,W1_v,W2_v
1,A,
2,B,
3,A,NA
4,B,NA
5,,A
6,,B
`)
		_, _, err := agg.Aggregate(ctx, table, Request{SourceColumn: "W1_v", TargetColumn: "W2_v"})
		require.Error(t, err)

		var invalid *ValidationError
		require.ErrorAs(t, err, &invalid)
		assert.Contains(t, err.Error(), "no rows with values in both")
	})
}
