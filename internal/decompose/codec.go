package decompose

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chrissnell/remotetide/internal/forecast"
	"github.com/chrissnell/remotetide/internal/tide"
	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes a fitted model with MessagePack
func Encode(w io.Writer, m *Model) error {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	return enc.Encode(m)
}

// Decode restores a model written by Encode
func Decode(r io.Reader) (*Model, error) {
	var m Model
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	if m.Version != modelVersion {
		return nil, fmt.Errorf("unsupported model version %d", m.Version)
	}
	if m.SpanSeconds <= 0 || m.YScale == 0 {
		return nil, fmt.Errorf("model is missing its scaling parameters")
	}
	if len(m.Deltas) != len(m.Changepoints) {
		return nil, fmt.Errorf("model has %d deltas for %d changepoints", len(m.Deltas), len(m.Changepoints))
	}

	loc, err := time.LoadLocation(m.Location)
	if err != nil {
		loc = time.UTC
	}
	for i := range m.Readings {
		m.Readings[i].Time = m.Readings[i].Time.In(loc)
	}
	m.Start = m.Start.In(loc)
	m.history = tide.NewSeries(m.Readings)
	return &m, nil
}

// Load implements forecast.ModelLoader
func (e *Engine) Load(blob []byte) (forecast.Model, error) {
	return Decode(bytes.NewReader(blob))
}

// SaveFile writes a fitted model to path
func SaveFile(path string, fm forecast.Model) error {
	m, ok := fm.(*Model)
	if !ok {
		return fmt.Errorf("cannot save model of type %T", fm)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating model file: %w", err)
	}
	if err := Encode(f, m); err != nil {
		f.Close()
		return fmt.Errorf("writing model file: %w", err)
	}
	return f.Close()
}

// LoadFile reads a model written by SaveFile
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
