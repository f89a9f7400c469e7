// Package transitions aggregates paired survey observations into
// transition tables and summary statistics.
//
// Given a processed dataset and a resolved source/target column pair, the
// aggregator drops rows where either value is missing (pairwise complete
// case, no imputation), groups the remainder by (source value, target
// value) and derives counts, percentages against the complete-case total,
// a stability rate and the top patterns. The package also builds the
// crosstab matrix behind heatmap views and classifies patterns as stable
// or changed for the pattern-analysis report.
//
// Aggregation is pure computation over an in-memory table; it performs no
// I/O and holds no state between calls.
package transitions
