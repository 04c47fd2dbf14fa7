// Package snapshot serializes an engine's tracks and transport timing
// to timestamped JSON files, grounded on the teacher's
// sequencer/project.go in full: the same
// ~/.config/<app>/projects/<name>/<timestamp>.json directory layout,
// the same timestamp-prefixed filename parsing and newest-first sort,
// adapted from serializing UI device/widget state to serializing
// track event data and transport timing.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/grahamseamans/seqcore/event"
	"github.com/grahamseamans/seqcore/track"
	"github.com/grahamseamans/seqcore/transport"
)

// SeqEvent is one delta-timed record, the JSON-able twin of
// track.Seqev (which cannot itself be marshaled: its Next/Prev fields
// are pool indices with no meaning outside the originating pool).
type SeqEvent struct {
	Delta int32       `json:"delta"`
	Ev    event.Event `json:"ev"`
}

// TrackSnapshot is one track's full event list plus its trailing
// silence.
type TrackSnapshot struct {
	Events    []SeqEvent `json:"events,omitempty"`
	TailDelta int32      `json:"tailDelta,omitempty"`
}

// TransportSnapshot is the subset of transport.Transport's timing
// state worth persisting across a save/load cycle: tempo and tick
// rate, not the live phase machine, which always restarts Stopped.
type TransportSnapshot struct {
	TickLength uint32 `json:"tickLength"`
	TicRate    uint32 `json:"ticRate"`
}

// Snapshot is the full persisted state of one project save.
type Snapshot struct {
	Transport TransportSnapshot `json:"transport"`
	Tracks    []TrackSnapshot   `json:"tracks,omitempty"`
}

// CaptureTrack walks t's event list via its public iteration API
// (First/Next/Event/Delta) into a JSON-able snapshot.
func CaptureTrack(t *track.Track) TrackSnapshot {
	var out TrackSnapshot
	for i := t.First(); !t.IsEnd(i); i = t.Next(i) {
		out.Events = append(out.Events, SeqEvent{Delta: t.Delta(i), Ev: t.Event(i)})
	}
	out.TailDelta = t.TailDelta()
	return out
}

// RestoreTrack rebuilds a *track.Track from ts, allocating its records
// from p.
func RestoreTrack(p *track.Pool, ts TrackSnapshot) *track.Track {
	t := track.New(p)
	for _, se := range ts.Events {
		i := t.InsertBefore(track.Sentinel, se.Ev)
		t.SetDelta(i, se.Delta)
	}
	t.SetTailDelta(ts.TailDelta)
	return t
}

// CaptureTransport captures tr's tempo and tick rate.
func CaptureTransport(tr *transport.Transport) TransportSnapshot {
	return TransportSnapshot{TickLength: tr.TickLength, TicRate: tr.TicRate}
}

// ApplyTransport restores snap's tempo and tick rate onto tr. tr must
// be Stopped: this does not touch phase or position.
func ApplyTransport(tr *transport.Transport, snap TransportSnapshot) {
	tr.ChgTempo(snap.TickLength)
	tr.ChgTicRate(snap.TicRate)
}

// SaveInfo describes one saved file, for listing.
type SaveInfo struct {
	Filename  string
	Name      string
	Timestamp time.Time
}

// ProjectsDir returns the projects directory path.
func ProjectsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "seqcore", "projects"), nil
}

// ProjectDir returns the path to a specific project.
func ProjectDir(projectName string) (string, error) {
	base, err := ProjectsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, projectName), nil
}

// ListProjects returns all project folder names, sorted.
func ListProjects() ([]string, error) {
	dir, err := ProjectsDir()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var projects []string
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// ListSaves returns timestamped saves for a project, newest first.
func ListSaves(projectName string) ([]SaveInfo, error) {
	dir, err := ProjectDir(projectName)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SaveInfo{}, nil
		}
		return nil, err
	}

	var saves []SaveInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		baseName := strings.TrimSuffix(name, ".json")
		if len(baseName) < 19 {
			continue
		}

		tsStr := baseName[:19]
		ts, err := time.Parse("2006-01-02_15-04-05", tsStr)
		if err != nil {
			continue
		}

		saveName := ""
		if len(baseName) > 20 && baseName[19] == '_' {
			saveName = baseName[20:]
		}

		saves = append(saves, SaveInfo{Filename: name, Name: saveName, Timestamp: ts})
	}

	sort.Slice(saves, func(i, j int) bool { return saves[i].Timestamp.After(saves[j].Timestamp) })
	return saves, nil
}

// Save writes snap to a new timestamped file under projectName,
// creating the project directory if needed.
func Save(projectName string, snap Snapshot) error {
	if projectName == "" {
		projectName = "untitled"
	}

	dir, err := ProjectDir(projectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	path := filepath.Join(dir, timestamp+".json")
	return os.WriteFile(path, data, 0644)
}

// Load reads a specific save (or the most recent one if filename is
// empty) from projectName.
func Load(projectName, filename string) (Snapshot, error) {
	dir, err := ProjectDir(projectName)
	if err != nil {
		return Snapshot{}, err
	}

	if filename == "" {
		saves, err := ListSaves(projectName)
		if err != nil || len(saves) == 0 {
			return Snapshot{}, fmt.Errorf("snapshot: no saves found in project %s", projectName)
		}
		filename = saves[0].Filename
	}

	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// DeleteSave deletes one save file.
func DeleteSave(projectName, filename string) error {
	dir, err := ProjectDir(projectName)
	if err != nil {
		return err
	}
	return os.Remove(filepath.Join(dir, filename))
}

// DeleteProject deletes an entire project folder.
func DeleteProject(name string) error {
	dir, err := ProjectDir(name)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}
