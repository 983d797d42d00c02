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
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database
}

func (suite *baseTestSuite) TestRuns() {
	// no run
	_, err := suite.Database.LatestRun()
	suite.True(errors.Is(err, errors.NotFound))
	runs, err := suite.Database.ListRuns(10)
	suite.NoError(err)
	suite.Empty(runs)

	// record runs
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := &Run{
			StartTime: start.Add(time.Duration(i) * time.Hour),
			EndTime:   start.Add(time.Duration(i)*time.Hour + time.Minute),
			NumUsers:  100 + i,
			MaxK:      10,
			K:         2 + i,
			Seed:      42,
			Inertia:   float64(30 - i),
			Inertias:  []float64{300, 120, 60, 50},
			BlobURI:   "data/processed",
		}
		err = suite.Database.RecordRun(run)
		suite.NoError(err)
		suite.Equal(int64(i+1), run.ID)
	}

	// latest run
	run, err := suite.Database.LatestRun()
	suite.NoError(err)
	suite.Equal(int64(3), run.ID)
	suite.Equal(4, run.K)
	suite.Equal(102, run.NumUsers)
	suite.Equal(10, run.MaxK)
	suite.Equal(int64(42), run.Seed)
	suite.Equal(28.0, run.Inertia)
	suite.Equal([]float64{300, 120, 60, 50}, run.Inertias)
	suite.Equal("data/processed", run.BlobURI)
	suite.True(run.StartTime.Equal(start.Add(2 * time.Hour)))
	suite.True(run.EndTime.Equal(start.Add(2*time.Hour + time.Minute)))

	// list runs
	runs, err = suite.Database.ListRuns(2)
	suite.NoError(err)
	if suite.Len(runs, 2) {
		suite.Equal(int64(3), runs[0].ID)
		suite.Equal(int64(2), runs[1].ID)
	}
}
