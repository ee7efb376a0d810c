package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/ayusman/handrelay/internal/pose"
)

// rawSession is the top level of every accepted container. Metadata fields are kept raw
// so a wrongly-typed value falls back to its default instead of failing the load.
type rawSession struct {
	ActionName json.RawMessage `json:"actionName"`
	FPS        json.RawMessage `json:"fps"`
	Frames     json.RawMessage `json:"frames"`
}

// rawEntry is one frame of the entries layout.
type rawEntry struct {
	Landmarks json.RawMessage `json:"landmarks"`
	Points    json.RawMessage `json:"points"`
}

type rawLandmark struct {
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Z          *float64 `json:"z"`
	Visibility *float64 `json:"visibility"`
}

// LoadFile reads and parses the session stored at path.
func LoadFile(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	return Load(f)
}

// Load parses a session container. Both historical layouts are normalised into one
// Session; the top-level frames field must be present and be a list or a keyed object,
// otherwise a FormatError is returned. Individual malformed frames never fail the load.
func Load(r io.Reader) (*Session, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &IOError{Op: "read", Path: "-", Err: err}
	}

	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &FormatError{Reason: "not a JSON object", Err: err}
	}

	s := &Session{
		ActionName: decodeString(raw.ActionName),
		FPS:        decodeNumber(raw.FPS),
	}
	s.ApplyDefaults()

	frames := bytes.TrimSpace(raw.Frames)
	if len(frames) == 0 || bytes.Equal(frames, []byte("null")) {
		return nil, &FormatError{Reason: "missing frames field"}
	}

	switch frames[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(frames, &items); err != nil {
			return nil, &FormatError{Reason: "frames is not a list", Err: err}
		}
		s.Shape = detectListShape(items)
		if s.Shape == ShapeEntries {
			sortByFrameIndex(items)
		}
		s.Frames = make([]Frame, len(items))
		for i, item := range items {
			s.Frames[i] = parseItem(item)
		}
	case '{':
		items, err := orderedEntries(frames)
		if err != nil {
			return nil, &FormatError{Reason: "frames object is not keyed by frame", Err: err}
		}
		s.Shape = ShapeEntries
		s.Frames = make([]Frame, len(items))
		for i, item := range items {
			s.Frames[i] = parseItem(item)
		}
	default:
		return nil, &FormatError{Reason: fmt.Sprintf("frames has unsupported type starting with %q", frames[0])}
	}

	for i, f := range s.Frames {
		if f.Err != nil {
			slog.Warn("rejected session frame", "action", s.ActionName, "frame", i+1, "reason", f.Err)
		}
	}
	return s, nil
}

// sortByFrameIndex orders a list of entries by their "frame" field. The list keeps its
// order unless every entry carries an index.
func sortByFrameIndex(items []json.RawMessage) {
	idx := make([]int, len(items))
	for i, item := range items {
		var entry struct {
			Frame *int `json:"frame"`
		}
		if json.Unmarshal(item, &entry) != nil || entry.Frame == nil {
			return
		}
		idx[i] = *entry.Frame
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return idx[order[a]] < idx[order[b]] })

	sorted := make([]json.RawMessage, len(items))
	for i, o := range order {
		sorted[i] = items[o]
	}
	copy(items, sorted)
}

func decodeString(raw json.RawMessage) string {
	var v string
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func decodeNumber(raw json.RawMessage) float64 {
	var v float64
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return 0
	}
	return v
}

// detectListShape reports the layout of a frames list from its first non-null element.
func detectListShape(items []json.RawMessage) Shape {
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 {
			continue
		}
		if item[0] == '{' {
			return ShapeEntries
		}
		if item[0] == '[' {
			return ShapeGrid
		}
	}
	return ShapeGrid
}

// orderedEntries returns the values of a frame-keyed object ordered by the numeric suffix
// of each key ("frame_2" before "frame_10"), with non-numbered keys last in lexical order.
func orderedEntries(data []byte) ([]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, okI := numericSuffix(keys[i])
		nj, okJ := numericSuffix(keys[j])
		switch {
		case okI && okJ && ni != nj:
			return ni < nj
		case okI != okJ:
			return okI
		default:
			return keys[i] < keys[j]
		}
	})

	out := make([]json.RawMessage, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out, nil
}

func numericSuffix(key string) (int, bool) {
	end := len(key)
	start := strings.LastIndexFunc(key, func(r rune) bool { return !unicode.IsDigit(r) }) + 1
	if start >= end {
		return 0, false
	}
	n, err := strconv.Atoi(key[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseItem turns one element of the frames container into a Frame, recording why it
// cannot be rendered instead of failing.
func parseItem(item json.RawMessage) Frame {
	item = bytes.TrimSpace(item)
	if len(item) == 0 {
		return Frame{Err: ErrFrameMalformed}
	}

	switch item[0] {
	case '[':
		return parseLandmarks(item)
	case '{':
		var entry rawEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			return Frame{Err: fmt.Errorf("%w: %v", ErrFrameMalformed, err)}
		}
		switch {
		case len(entry.Landmarks) > 0:
			return parseLandmarks(bytes.TrimSpace(entry.Landmarks))
		case len(entry.Points) > 0:
			return parseLandmarks(bytes.TrimSpace(entry.Points))
		default:
			return Frame{Err: fmt.Errorf("%w: entry has no landmarks", ErrFrameMalformed)}
		}
	default:
		return Frame{Err: ErrFrameMalformed}
	}
}

func parseLandmarks(data []byte) Frame {
	if len(data) == 0 || data[0] != '[' {
		return Frame{Err: ErrFrameMalformed}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return Frame{Err: fmt.Errorf("%w: %v", ErrFrameMalformed, err)}
	}
	if err := checkLength(len(items)); err != nil {
		return Frame{Err: err}
	}

	p := make(pose.Pose, 0, len(items))
	for i, item := range items {
		l, ok := parseLandmark(item)
		if !ok {
			if i < pose.NumLandmarks {
				return Frame{Err: fmt.Errorf("%w: landmark %d", ErrLandmarkMissing, i)}
			}
			// Trailing extras beyond the anatomical set are dropped from the first bad one.
			break
		}
		p = append(p, l)
	}

	return Frame{Pose: p}
}

func parseLandmark(item json.RawMessage) (pose.Landmark, bool) {
	var raw rawLandmark
	if err := json.Unmarshal(item, &raw); err != nil {
		return pose.Landmark{}, false
	}
	if raw.X == nil || raw.Y == nil || raw.Z == nil {
		return pose.Landmark{}, false
	}

	l := pose.Landmark{X: *raw.X, Y: *raw.Y, Z: *raw.Z}
	if raw.Visibility != nil {
		l.Visibility = *raw.Visibility
	}
	return l, true
}
