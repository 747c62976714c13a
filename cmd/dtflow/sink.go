package main

import (
	"fmt"
	"os"

	"github.com/dtflow/dtflow/pkg/dtflow"
	"github.com/dtflow/dtflow/pkg/dtflow/export"
	"github.com/dtflow/dtflow/pkg/dtflow/source"
)

// dumpSink absorbs accepted events during a dump.
type dumpSink interface {
	Write(ev *dtflow.Event) error
	Close() error
	// Abort drops whatever the sink holds, leaving no partial output.
	Abort()
}

// jsonSink streams events straight to a JSON dump file.
type jsonSink struct {
	f    *os.File
	w    *export.Writer
	path string
}

func newJSONSink(path, sample string) (*jsonSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create dump: %w", err)
	}
	return &jsonSink{f: f, w: export.NewWriter(f, export.WithSample(sample)), path: path}, nil
}

func (s *jsonSink) Write(ev *dtflow.Event) error { return s.w.Write(ev) }

func (s *jsonSink) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

func (s *jsonSink) Abort() {
	s.f.Close()
	os.Remove(s.path)
}

// arrowSink buffers flattened rows until Close, when the schema can be
// inferred from everything seen.
type arrowSink struct {
	path string
	rows []source.Row
}

func newArrowSink(path string) *arrowSink {
	return &arrowSink{path: path}
}

func (s *arrowSink) Write(ev *dtflow.Event) error {
	s.rows = append(s.rows, export.Rows([]*dtflow.Event{ev})[0])
	return nil
}

func (s *arrowSink) Close() error {
	if len(s.rows) == 0 {
		return fmt.Errorf("no accepted events to dump")
	}
	schema, err := source.InferSchema(s.rows)
	if err != nil {
		return err
	}
	return source.WriteArrow(s.path, schema, s.rows, 0)
}

func (s *arrowSink) Abort() { s.rows = nil }
