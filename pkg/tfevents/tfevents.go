// Package tfevents writes TensorBoard-compatible scalar event files.
//
// An event file is a sequence of TFRecords, each framing a serialized Event
// protobuf. Only the small subset of the Event schema needed for scalar
// summaries is encoded here, directly with protowire.
package tfevents

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers fixed by TensorFlow's event.proto and summary.proto.
const (
	eventWallTimeField    = 1 // double
	eventStepField        = 2 // int64
	eventFileVersionField = 3 // string
	eventSummaryField     = 5 // Summary message

	summaryValueField = 1 // repeated Summary.Value message

	valueTagField    = 1 // string
	valueSimpleField = 2 // float
)

// fileVersion is the version record TensorBoard expects as the first event.
const fileVersion = "brain.Event:2"

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Writer appends scalar summary events to a single event file.
type Writer struct {
	f *os.File
}

// NewWriter creates dir if needed, opens a new event file inside it and
// writes the file-version record.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create event directory: %w", err)
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	name := fmt.Sprintf("events.out.tfevents.%d.%s", time.Now().Unix(), host)
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create event file: %w", err)
	}
	w := &Writer{f: f}
	if err := w.writeRecord(encodeVersionEvent(wallTime())); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// WriteScalar appends one scalar summary value under the given tag.
func (w *Writer) WriteScalar(tag string, step int64, value float32) error {
	return w.writeRecord(encodeScalarEvent(wallTime(), step, tag, value))
}

// Close flushes and closes the event file.
func (w *Writer) Close() error {
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("sync event file: %w", err)
	}
	return w.f.Close()
}

func wallTime() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// writeRecord frames a payload as a TFRecord: length, masked CRC of the
// length bytes, payload, masked CRC of the payload.
func (w *Writer) writeRecord(payload []byte) error {
	var header [12]byte
	binary.LittleEndian.PutUint64(header[0:8], uint64(len(payload)))
	binary.LittleEndian.PutUint32(header[8:12], maskedCRC(header[0:8]))
	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(payload))
	for _, chunk := range [][]byte{header[:], payload, footer[:]} {
		if _, err := w.f.Write(chunk); err != nil {
			return fmt.Errorf("write event record: %w", err)
		}
	}
	return nil
}

// maskedCRC computes the masked Castagnoli CRC TensorFlow uses for record
// integrity.
func maskedCRC(data []byte) uint32 {
	c := crc32.Checksum(data, crcTable)
	return ((c >> 15) | (c << 17)) + 0xa282ead8
}

func encodeVersionEvent(wall float64) []byte {
	var ev []byte
	ev = protowire.AppendTag(ev, eventWallTimeField, protowire.Fixed64Type)
	ev = protowire.AppendFixed64(ev, math.Float64bits(wall))
	ev = protowire.AppendTag(ev, eventFileVersionField, protowire.BytesType)
	ev = protowire.AppendString(ev, fileVersion)
	return ev
}

func encodeScalarEvent(wall float64, step int64, tag string, value float32) []byte {
	var val []byte
	val = protowire.AppendTag(val, valueTagField, protowire.BytesType)
	val = protowire.AppendString(val, tag)
	val = protowire.AppendTag(val, valueSimpleField, protowire.Fixed32Type)
	val = protowire.AppendFixed32(val, math.Float32bits(value))

	var summary []byte
	summary = protowire.AppendTag(summary, summaryValueField, protowire.BytesType)
	summary = protowire.AppendBytes(summary, val)

	var ev []byte
	ev = protowire.AppendTag(ev, eventWallTimeField, protowire.Fixed64Type)
	ev = protowire.AppendFixed64(ev, math.Float64bits(wall))
	ev = protowire.AppendTag(ev, eventStepField, protowire.VarintType)
	ev = protowire.AppendVarint(ev, uint64(step))
	ev = protowire.AppendTag(ev, eventSummaryField, protowire.BytesType)
	ev = protowire.AppendBytes(ev, summary)
	return ev
}
