// Copyright 2024 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package meta

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	_ "modernc.org/sqlite"
)

type SQLite struct {
	db *sql.DB
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Init() error {
	if _, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS training_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	start_time DATETIME,
	end_time DATETIME,
	n_users INTEGER,
	max_k INTEGER,
	k INTEGER,
	seed INTEGER,
	inertia REAL,
	inertias TEXT,
	blob_uri TEXT
);`); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (s *SQLite) RecordRun(run *Run) error {
	inertias, err := json.Marshal(run.Inertias)
	if err != nil {
		return errors.Trace(err)
	}
	result, err := s.db.Exec(`
INSERT INTO training_runs (start_time, end_time, n_users, max_k, k, seed, inertia, inertias, blob_uri)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, run.StartTime.UTC(), run.EndTime.UTC(), run.NumUsers, run.MaxK, run.K, run.Seed, run.Inertia, string(inertias), run.BlobURI)
	if err != nil {
		return errors.Trace(err)
	}
	run.ID, err = result.LastInsertId()
	return errors.Trace(err)
}

func (s *SQLite) LatestRun() (*Run, error) {
	runs, err := s.ListRuns(1)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(runs) == 0 {
		return nil, ErrNoRun
	}
	return runs[0], nil
}

func (s *SQLite) ListRuns(n int) ([]*Run, error) {
	rs, err := s.db.Query(`
SELECT id, start_time, end_time, n_users, max_k, k, seed, inertia, inertias, blob_uri FROM training_runs
ORDER BY id DESC LIMIT ?
`, n)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rs.Close()
	var runs []*Run
	for rs.Next() {
		var (
			run      Run
			inertias string
		)
		if err = rs.Scan(&run.ID, &run.StartTime, &run.EndTime, &run.NumUsers, &run.MaxK, &run.K, &run.Seed,
			&run.Inertia, &inertias, &run.BlobURI); err != nil {
			return nil, errors.Trace(err)
		}
		if err = json.Unmarshal([]byte(inertias), &run.Inertias); err != nil {
			return nil, errors.Trace(err)
		}
		runs = append(runs, &run)
	}
	return runs, errors.Trace(rs.Err())
}

// EnsureDir creates the parent directory of a sqlite DSN.
func EnsureDir(path string) error {
	name := strings.TrimPrefix(path, "sqlite://")
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	if name == "" || name == ":memory:" {
		return nil
	}
	return errors.Trace(os.MkdirAll(filepath.Dir(name), os.ModePerm))
}
