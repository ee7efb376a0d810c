package session

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/ayusman/handrelay/internal/pose"
)

// fileSession is the on-disk layout written by Save.
type fileSession struct {
	ActionName string      `json:"actionName"`
	FPS        float64     `json:"fps"`
	FrameCount int         `json:"frameCount"`
	Frames     []pose.Pose `json:"frames"`
}

func toFile(s *Session) fileSession {
	out := fileSession{
		ActionName: s.ActionName,
		FPS:        s.FPS,
		FrameCount: len(s.Frames),
		Frames:     make([]pose.Pose, len(s.Frames)),
	}
	if out.ActionName == "" {
		out.ActionName = DefaultActionName
	}
	if !(out.FPS > 0) {
		out.FPS = DefaultFPS
	}
	for i, f := range s.Frames {
		p := f.Pose
		if p == nil {
			p = pose.Pose{}
		}
		out.Frames[i] = p
	}
	return out
}

func encode(w io.Writer, s *Session) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toFile(s))
}

// Save writes s to w in the grid layout.
func Save(w io.Writer, s *Session) error {
	if err := encode(w, s); err != nil {
		return &IOError{Op: "write", Path: "-", Err: err}
	}
	return nil
}

// SaveFile writes s to path, replacing any existing file. The data goes to a temporary
// file in the same directory which is renamed over path only once it is complete, so a
// failed save never leaves a truncated session behind.
func SaveFile(path string, s *Session) error {
	return saveFile(path, s, os.Rename)
}

// SaveNewFile writes s to path like SaveFile but never replaces an existing file. When
// path exists the error matches fs.ErrExist.
func SaveNewFile(path string, s *Session) error {
	return saveFile(path, s, func(tmp, path string) error {
		// A hard link fails when path exists, unlike rename.
		if err := os.Link(tmp, path); err != nil {
			return err
		}
		return os.Remove(tmp)
	})
}

func saveFile(path string, s *Session, commit func(tmp, path string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &IOError{Op: "save", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return &IOError{Op: "save", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful commit

	if err := encode(tmp, s); err != nil {
		tmp.Close()
		return &IOError{Op: "save", Path: path, Err: err}
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return &IOError{Op: "save", Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &IOError{Op: "save", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Op: "save", Path: path, Err: err}
	}
	if err := commit(tmpName, path); err != nil {
		return &IOError{Op: "save", Path: path, Err: err}
	}
	return nil
}
