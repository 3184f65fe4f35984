// Package ingest feeds detector output into the crowd tracker. Frames
// arrive as one JSON object each, from a JSON-lines stream, UDP datagrams
// or a packet capture of those datagrams.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/crowd.report/internal/crowd"
)

// ErrMalformedFrame is returned when a frame message cannot be decoded.
var ErrMalformedFrame = errors.New("malformed frame")

// maxLineBytes bounds a single JSON-lines record.
const maxLineBytes = 4 << 20

// Frame is one detector frame: its number and the positions of the people
// detected in it.
type Frame struct {
	FrameNumber int
	Points      []crowd.Point
}

// wireFrame is the JSON shape of a frame message. Exactly one of Points or
// Boxes is expected; boxes are reduced to their centres.
type wireFrame struct {
	Frame  *int        `json:"frame"`
	Points [][]float64 `json:"points,omitempty"`
	Boxes  [][]float64 `json:"boxes,omitempty"`
}

// FrameHandler consumes decoded frames in arrival order.
type FrameHandler interface {
	HandleFrame(ctx context.Context, frame Frame) error
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(ctx context.Context, frame Frame) error

// HandleFrame calls f.
func (f FrameHandlerFunc) HandleFrame(ctx context.Context, frame Frame) error {
	return f(ctx, frame)
}

// DecodeFrame parses a single frame message.
func DecodeFrame(data []byte) (Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(data, &wf); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if wf.Frame == nil {
		return Frame{}, fmt.Errorf("%w: missing frame number", ErrMalformedFrame)
	}
	if wf.Points != nil && wf.Boxes != nil {
		return Frame{}, fmt.Errorf("%w: frame %d has both points and boxes", ErrMalformedFrame, *wf.Frame)
	}

	frame := Frame{FrameNumber: *wf.Frame, Points: make([]crowd.Point, 0, len(wf.Points)+len(wf.Boxes))}
	for i, p := range wf.Points {
		if len(p) != 2 {
			return Frame{}, fmt.Errorf("%w: frame %d point %d has %d coordinates", ErrMalformedFrame, *wf.Frame, i, len(p))
		}
		frame.Points = append(frame.Points, crowd.Point{X: p[0], Y: p[1]})
	}
	for i, b := range wf.Boxes {
		if len(b) != 4 {
			return Frame{}, fmt.Errorf("%w: frame %d box %d has %d coordinates", ErrMalformedFrame, *wf.Frame, i, len(b))
		}
		frame.Points = append(frame.Points, BoxCentre(b[0], b[1], b[2], b[3]))
	}
	return frame, nil
}

// EncodeFrame renders frame in the points wire form.
func EncodeFrame(frame Frame) ([]byte, error) {
	wf := wireFrame{Frame: &frame.FrameNumber, Points: make([][]float64, 0, len(frame.Points))}
	for _, p := range frame.Points {
		wf.Points = append(wf.Points, []float64{p.X, p.Y})
	}
	return json.Marshal(wf)
}

// BoxCentre returns the centre of a bounding box with each coordinate
// truncated to a whole pixel.
func BoxCentre(x1, y1, x2, y2 float64) crowd.Point {
	return crowd.Point{
		X: math.Trunc((x1 + x2) / 2),
		Y: math.Trunc((y1 + y2) / 2),
	}
}

// ReadFrames decodes one frame per line from r and passes each to h.
// Blank lines are skipped. Decoding stops at the first malformed line or
// handler error.
func ReadFrames(ctx context.Context, r io.Reader, h FrameHandler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		frame, err := DecodeFrame(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := h.HandleFrame(ctx, frame); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read frames: %w", err)
	}
	return nil
}
