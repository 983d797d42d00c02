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
	"strings"
	"time"

	"github.com/gorse-io/cinecluster/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

var ErrNoRun = errors.NotFoundf("training run")

// Run is the record of a training job.
type Run struct {
	ID        int64     `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	NumUsers  int       `json:"n_users"`
	MaxK      int       `json:"max_k"`
	K         int       `json:"k"`
	Seed      int64     `json:"seed"`
	Inertia   float64   `json:"inertia"`
	Inertias  []float64 `json:"inertias"`
	BlobURI   string    `json:"blob_uri"`
}

type Database interface {
	Close() error
	Init() error
	// RecordRun stores a run and assigns its ID.
	RecordRun(run *Run) error
	// LatestRun returns the most recent run or ErrNoRun.
	LatestRun() (*Run, error)
	// ListRuns returns at most n runs, newest first.
	ListRuns(n int) ([]*Run, error)
}

// Open a connection to a database.
func Open(path string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.SQLitePrefix) {
		dataSourceName := path[len(storage.SQLitePrefix):]
		// append parameters
		if dataSourceName, err = storage.AppendURLParams(dataSourceName, []lo.Tuple2[string, string]{
			{"_pragma", "busy_timeout(10000)"},
			{"_pragma", "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLite)
		if database.db, err = sql.Open("sqlite", dataSourceName); err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
