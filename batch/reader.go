package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"kuanb/gosm-matcher/geom"
	"kuanb/gosm-matcher/routing"
)

// Source yields trajectories until it returns io.EOF
type Source interface {
	Next() (Trajectory, error)
}

// Reader reads trajectories from CSV rows of driver_id,trip_id,timestamp,lon,lat.
// Rows of one trip must be contiguous; a non-numeric timestamp in the first row marks a header.
type Reader struct {
	csv     *csv.Reader
	pending []string
	line    int
	done    bool
}

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5
	cr.ReuseRecord = false
	return &Reader{csv: cr}
}

func (r *Reader) read() ([]string, error) {
	if r.pending != nil {
		row := r.pending
		r.pending = nil
		return row, nil
	}
	row, err := r.csv.Read()
	if err != nil {
		return nil, err
	}
	r.line++
	if r.line == 1 {
		if _, err := strconv.ParseFloat(row[2], 64); err != nil {
			return r.read()
		}
	}
	return row, nil
}

// Next returns the next trip, ordered by timestamp
func (r *Reader) Next() (Trajectory, error) {
	if r.done {
		return Trajectory{}, io.EOF
	}

	var traj Trajectory
	for {
		row, err := r.read()
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		if err != nil {
			return Trajectory{}, err
		}
		if traj.ID != "" && row[1] != traj.ID {
			r.pending = row
			break
		}

		obs, err := parseRow(row)
		if err != nil {
			return Trajectory{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		traj.ID, traj.Driver = row[1], row[0]
		traj.Observations = append(traj.Observations, obs)
	}

	if len(traj.Observations) == 0 {
		return Trajectory{}, io.EOF
	}
	sort.SliceStable(traj.Observations, func(i, j int) bool {
		return traj.Observations[i].Time.Before(traj.Observations[j].Time)
	})
	return traj, nil
}

func parseRow(row []string) (routing.Observation, error) {
	ts, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return routing.Observation{}, fmt.Errorf("timestamp: %w", err)
	}
	lon, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return routing.Observation{}, fmt.Errorf("longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return routing.Observation{}, fmt.Errorf("latitude: %w", err)
	}
	return routing.Observation{Lon: lon, Lat: lat, Time: geom.UnixSeconds(ts)}, nil
}

// FileSource reads several CSV files one after another
type FileSource struct {
	paths []string
	file  *os.File
	cur   *Reader
}

func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: paths}
}

func (s *FileSource) Next() (Trajectory, error) {
	for {
		if s.cur == nil {
			if len(s.paths) == 0 {
				return Trajectory{}, io.EOF
			}
			f, err := os.Open(s.paths[0])
			if err != nil {
				return Trajectory{}, err
			}
			s.paths = s.paths[1:]
			s.file, s.cur = f, NewReader(f)
		}

		traj, err := s.cur.Next()
		if errors.Is(err, io.EOF) {
			s.file.Close()
			s.file, s.cur = nil, nil
			continue
		}
		if err != nil {
			return Trajectory{}, fmt.Errorf("%s: %w", s.file.Name(), err)
		}
		return traj, nil
	}
}

// Close releases the file currently being read
func (s *FileSource) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
