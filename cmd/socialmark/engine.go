package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/socialmark/internal/annotation"
	"github.com/nao1215/socialmark/internal/capture"
	"github.com/nao1215/socialmark/internal/config"
	"github.com/nao1215/socialmark/internal/database"
	"github.com/nao1215/socialmark/internal/model"
	"github.com/nao1215/socialmark/internal/observer"
	"github.com/nao1215/socialmark/internal/pipeline"
	"github.com/nao1215/socialmark/internal/signature"
)

// engine wires the observer hub to the share pipeline and the database.
// It is shared by the watch and replay commands.
type engine struct {
	hub        *observer.Hub
	db         *database.PlacesDB
	merger     *annotation.Merger
	controller *pipeline.Controller
	recorder   *capture.Recorder
	logger     *slog.Logger
}

// newEngine opens the database and subscribes the pipeline to a new hub.
// When cfg.RecordFile is set, a recorder is subscribed first so that it
// sees every event before the pipeline reads its body.
func newEngine(cfg *config.Config, logger *slog.Logger) (*engine, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	e := &engine{
		hub:    observer.NewHub(observer.WithLogger(logger)),
		db:     db,
		logger: logger,
	}

	mergerOpts := []annotation.Option{annotation.WithLogger(logger)}
	if cfg.SerializeWrites {
		mergerOpts = append(mergerOpts, annotation.WithSerializedWrites())
	}
	e.merger = annotation.NewMerger(db, mergerOpts...)

	if cfg.RecordFile != "" {
		e.recorder, err = capture.CreateRecorder(cfg.RecordFile, logger)
		if err != nil {
			_ = db.Close() //nolint:errcheck // Best effort cleanup
			return nil, err
		}
		e.hub.Subscribe(model.TopicModifyRequest, e.recorder)
		e.hub.Subscribe(model.TopicExamineResponse, e.recorder)
	}

	e.controller = pipeline.NewController(e.hub, signature.Default(), e.merger,
		pipeline.WithControllerLogger(logger),
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithDumpRequests(cfg.DumpRequests),
	)
	e.controller.Start()

	logger.Info("database opened", "path", db.Path(), "serialize_writes", e.merger.Serialized())
	return e, nil
}

// Close stops the pipeline, waits for in-flight invocations and releases
// the recorder and database.
func (e *engine) Close() error {
	e.controller.Stop()

	var firstErr error
	if e.recorder != nil {
		if err := e.recorder.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close recorder: %w", err)
		}
		e.logger.Info("events recorded", "count", e.recorder.Count())
	}
	if err := e.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close database: %w", err)
	}
	return firstErr
}

// printStats writes the controller counters as a one-line summary.
func (e *engine) printStats(w io.Writer) {
	s := e.controller.Stats()
	fmt.Fprintf(w, "Observed: %d, annotated: %d, unmatched: %d, failed: %d\n",
		s.Observed, s.Annotated, s.Unmatched, s.Failed)
}
