// Package pipeline runs the data preparation steps that turn a raw
// survey export into a processed dataset ready for transition analysis.
//
// A run is a dependency-ordered sequence of steps: load the raw table,
// convert coded values to labels, apply missing-value strategies, merge
// category values, apply persisted row filters, and write the processed
// CSV. Every transformation is driven by settings CSVs so runs are
// repeatable without interaction.
//
// The Manager orchestrates execution: it resolves step order through the
// Registry, tracks per-step state in a RunState, and publishes progress
// snapshots through the StatusBroadcaster to connected websocket
// clients.
//
//	registry := pipeline.NewRegistry()
//	registry.Register(pipeline.NewLoadStep(logger, opts))
//	registry.Register(pipeline.NewLabelStep(settingsDir, logger, opts))
//	// ...
//	manager := pipeline.NewManager(hub, registry, nil, metrics, logger)
//	resp, err := manager.Execute(ctx, pipeline.Request{
//		DatasetPath: "data/wave_panel.csv",
//		OutputPath:  "data/processed_data.csv",
//	})
package pipeline
