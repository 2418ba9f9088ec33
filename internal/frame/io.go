package frame

import (
	"bufio"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/csv"
	"github.com/apache/arrow/go/v17/arrow/ipc"
)

// ReadCSV loads a frame from CSV with a header row, typing columns by name.
// Empty cells become null.
func ReadCSV(r io.Reader, types TypeFunc) (*Frame, error) {
	// The header decides the schema, so it is read ahead of the arrow
	// reader on the same buffer.
	br := bufio.NewReader(r)
	header, err := stdcsv.NewReader(br).Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	schema := Schema(header, types)
	rdr := csv.NewReader(br, schema,
		csv.WithChunk(-1),
		csv.WithNullReader(true, ""),
	)
	defer rdr.Release()

	if !rdr.Next() {
		if err := rdr.Err(); err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		return empty(schema), nil
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	rec := rdr.Record()
	rec.Retain()
	return New(rec), nil
}

// ReadCSVFile loads a frame from a CSV file.
func ReadCSVFile(path string, types TypeFunc) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	f, err := ReadCSV(file, types)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// WriteCSV writes the frame with a header row; nulls are written empty.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w, f.rec.Schema(),
		csv.WithHeader(true),
		csv.WithNullWriter(""),
	)
	if err := cw.Write(f.rec); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return cw.Flush()
}

// WriteCSVFile writes the frame to path, replacing any existing file.
func WriteCSVFile(path string, f *Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(file, f); err != nil {
		_ = file.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return file.Close()
}

// WriteIPC writes the frame as an arrow IPC stream of one record batch.
func WriteIPC(w io.Writer, f *Frame) error {
	iw := ipc.NewWriter(w, ipc.WithSchema(f.rec.Schema()))
	if err := iw.Write(f.rec); err != nil {
		_ = iw.Close()
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	if err := iw.Close(); err != nil {
		return fmt.Errorf("failed to close ipc stream: %w", err)
	}
	return nil
}

// ReadIPC reads a stream written by WriteIPC.
func ReadIPC(r io.Reader) (*Frame, error) {
	ir, err := ipc.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open ipc stream: %w", err)
	}
	defer ir.Release()

	var rec arrow.Record
	for ir.Next() {
		if rec != nil {
			rec.Release()
			return nil, fmt.Errorf("ipc stream holds more than one record batch")
		}
		rec = ir.Record()
		rec.Retain()
	}
	if err := ir.Err(); err != nil {
		if rec != nil {
			rec.Release()
		}
		return nil, fmt.Errorf("failed to read record batch: %w", err)
	}

	if rec == nil {
		return empty(ir.Schema()), nil
	}
	return New(rec), nil
}
