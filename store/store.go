// Package store persists timestepped floe state to a chunked, appendable
// binary file: three parallel time-indexed series (per-floe outline
// points, per-floe kinematic frames, scalar time), buffered in memory and
// flushed in fixed-size batches.
package store

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/polarsim/icefloe/actor"
)

// DefaultFlushSteps is the number of buffered steps per chunk.
const DefaultFlushSteps = 100

// frameSize is the scalar count of one kinematic frame:
// pos x/y, theta, speed x/y, rot.
const frameSize = 6

var magic = [4]byte{'I', 'F', 'S', '1'}

// ErrNoFrame is returned by Recover when the file holds no frame at or
// before the requested time.
var ErrNoFrame = errors.New("store: no frame recorded at or before requested time")

// Store buffers and writes one output file. Not safe for concurrent use;
// the simulation loop owns it.
type Store struct {
	f *os.File
	w *bufio.Writer

	// FlushSteps is the batch size; change it before the first SaveStep.
	FlushSteps int

	bufTime     []float64
	bufFrames   [][]float64      // per step: nFloes * frameSize scalars
	bufOutlines [][][]mgl64.Vec2 // per step, per floe: outline points
}

// Create opens path for writing, truncating any previous content.
func Create(path string) (*Store, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(magic[:]); err != nil {
		f.Close()
		return nil, err
	}
	return &Store{f: f, w: w, FlushSteps: DefaultFlushSteps}, nil
}

// SaveStep buffers one timestep of state and flushes a chunk once
// FlushSteps steps have accumulated.
func (s *Store) SaveStep(time float64, floes []*actor.Floe) error {
	frame := make([]float64, 0, len(floes)*frameSize)
	outlines := make([][]mgl64.Vec2, len(floes))
	for i, f := range floes {
		frame = append(frame,
			f.State.Pos.X(), f.State.Pos.Y(), f.State.Theta,
			f.State.Speed.X(), f.State.Speed.Y(), f.State.Rot)
		outlines[i] = f.WorldOutline()
	}
	s.bufTime = append(s.bufTime, time)
	s.bufFrames = append(s.bufFrames, frame)
	s.bufOutlines = append(s.bufOutlines, outlines)

	if len(s.bufTime) >= s.FlushSteps {
		return s.Flush()
	}
	return nil
}

// Flush appends the buffered steps as one chunk and clears the buffers.
// Flushing an empty buffer is a no-op.
func (s *Store) Flush() error {
	nSteps := len(s.bufTime)
	if nSteps == 0 {
		return nil
	}
	nFloes := len(s.bufFrames[0]) / frameSize

	if err := writeU32(s.w, uint32(nSteps)); err != nil {
		return err
	}
	if err := writeU32(s.w, uint32(nFloes)); err != nil {
		return err
	}
	if err := binary.Write(s.w, binary.LittleEndian, s.bufTime); err != nil {
		return err
	}
	for _, frame := range s.bufFrames {
		if err := binary.Write(s.w, binary.LittleEndian, frame); err != nil {
			return err
		}
	}
	// Outline series is extended per floe along the time dimension:
	// (step, point, coordinate) blocks, one per floe.
	for floeID := 0; floeID < nFloes; floeID++ {
		nPts := len(s.bufOutlines[0][floeID])
		if err := writeU32(s.w, uint32(nPts)); err != nil {
			return err
		}
		for step := 0; step < nSteps; step++ {
			pts := s.bufOutlines[step][floeID]
			for _, p := range pts {
				if err := binary.Write(s.w, binary.LittleEndian, [2]float64{p.X(), p.Y()}); err != nil {
					return err
				}
			}
		}
	}

	s.bufTime = s.bufTime[:0]
	s.bufFrames = s.bufFrames[:0]
	s.bufOutlines = s.bufOutlines[:0]
	return s.w.Flush()
}

// Close flushes any partial chunk and closes the file.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// Recover reads the file at path, finds the latest recorded frame at or
// before time, applies it to the floes and returns the recorded time.
func Recover(path string, time float64, floes []*actor.Floe) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return 0, err
	}
	if m != magic {
		return 0, fmt.Errorf("store: %s is not a floe state file", path)
	}

	bestTime := 0.0
	var bestFrame []float64
	found := false

	for {
		nSteps, err := readU32(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		nFloes, err := readU32(r)
		if err != nil {
			return 0, err
		}

		times := make([]float64, nSteps)
		if err := binary.Read(r, binary.LittleEndian, times); err != nil {
			return 0, err
		}
		frames := make([]float64, int(nSteps)*int(nFloes)*frameSize)
		if err := binary.Read(r, binary.LittleEndian, frames); err != nil {
			return 0, err
		}
		for i, t := range times {
			if t <= time && (!found || t >= bestTime) {
				found = true
				bestTime = t
				start := i * int(nFloes) * frameSize
				bestFrame = frames[start : start+int(nFloes)*frameSize]
			}
		}

		// Skip the outline blocks of this chunk.
		for floeID := uint32(0); floeID < nFloes; floeID++ {
			nPts, err := readU32(r)
			if err != nil {
				return 0, err
			}
			skip := int64(nSteps) * int64(nPts) * 2 * 8
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return 0, err
			}
		}
	}

	if !found {
		return 0, ErrNoFrame
	}
	if len(bestFrame) != len(floes)*frameSize {
		return 0, fmt.Errorf("store: file holds %d floes, want %d", len(bestFrame)/frameSize, len(floes))
	}
	for i, f := range floes {
		b := bestFrame[i*frameSize:]
		f.State = actor.State{
			Pos:   mgl64.Vec2{b[0], b[1]},
			Theta: b[2],
			Speed: mgl64.Vec2{b[3], b[4]},
			Rot:   b[5],
		}
	}
	return bestTime, nil
}

func writeU32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
