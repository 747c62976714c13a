package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dtflow/dtflow/pkg/dtflow"
)

// Writer streams events into a dump: the header first, then one event
// record per line. Output is buffered; call Flush, or use WriteFile,
// before handing the destination to a reader.
type Writer struct {
	bw     *bufio.Writer
	enc    *json.Encoder
	sample string
	headed bool
	count  int
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithSample names the dumped dataset in the header.
func WithSample(name string) WriterOption {
	return func(w *Writer) { w.sample = name }
}

// NewWriter returns a writer streaming a dump to w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	bw := bufio.NewWriter(w)
	out := &Writer{bw: bw, enc: json.NewEncoder(bw)}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// Write appends one event to the dump. A nil event is skipped, so a
// cursor's results can drain straight into Write.
func (w *Writer) Write(ev *dtflow.Event) error {
	if ev == nil {
		return nil
	}
	if err := w.writeHeader(); err != nil {
		return err
	}
	if err := w.enc.Encode(Encode(ev)); err != nil {
		return fmt.Errorf("write event %d: %w", ev.Index(), err)
	}
	w.count++
	return nil
}

// Count reports how many events have been written.
func (w *Writer) Count() int { return w.count }

// Flush writes buffered output through. The header goes out even when
// no event was written, so an empty dump still reads back.
func (w *Writer) Flush() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	return w.bw.Flush()
}

func (w *Writer) writeHeader() error {
	if w.headed {
		return nil
	}
	if err := w.enc.Encode(Header{Version: Version, Sample: w.sample}); err != nil {
		return fmt.Errorf("write dump header: %w", err)
	}
	w.headed = true
	return nil
}

// Reader reads a dump back as events.
type Reader struct {
	dec *json.Decoder
	hdr Header
}

// NewReader reads and checks the dump header, rejecting versions this
// build does not understand.
func NewReader(r io.Reader) (*Reader, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var hdr Header
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("read dump header: %w", err)
	}
	if hdr.Version != Version {
		return nil, fmt.Errorf("dump version %d not supported (want %d)", hdr.Version, Version)
	}
	return &Reader{dec: dec, hdr: hdr}, nil
}

// Header returns the dump header.
func (r *Reader) Header() Header { return r.hdr }

// Next returns the next dumped event, or io.EOF once the dump is
// exhausted.
func (r *Reader) Next() (*dtflow.Event, error) {
	var rec EventRecord
	if err := r.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read event record: %w", err)
	}
	return Decode(&rec)
}

// WriteFile dumps events to path in one call.
func WriteFile(path string, events []*dtflow.Event, opts ...WriterOption) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dump: %w", err)
	}
	w := NewWriter(f, opts...)
	for _, ev := range events {
		if err := w.Write(ev); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads a whole dump from path.
func ReadFile(path string) (Header, []*dtflow.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, fmt.Errorf("open dump: %w", err)
	}
	defer f.Close()
	r, err := NewReader(f)
	if err != nil {
		return Header{}, nil, err
	}
	var events []*dtflow.Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return r.Header(), nil, err
		}
		events = append(events, ev)
	}
	return r.Header(), events, nil
}
