// Copyright 2020 gorse Project Authors
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

package parallel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestParallel(t *testing.T) {
	a := lo.Range(10000)
	b := make([]int, len(a))
	workerIds := make([]int, len(a))
	// multiple threads
	err := Parallel(context.Background(), len(a), 4, func(workerId, jobId int) error {
		b[jobId] = a[jobId]
		workerIds[jobId] = workerId
		time.Sleep(time.Microsecond)
		return nil
	})
	assert.NoError(t, err)
	workersSet := mapset.NewSet(workerIds...)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, 4, workersSet.Cardinality())
	// single thread
	err = Parallel(context.Background(), len(a), 1, func(workerId, jobId int) error {
		b[jobId] = a[jobId]
		workerIds[jobId] = workerId
		return nil
	})
	assert.NoError(t, err)
	workersSet = mapset.NewSet(workerIds...)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, workersSet.Cardinality())
}

func TestParallelError(t *testing.T) {
	err := Parallel(context.Background(), 100, 4, func(_, jobId int) error {
		if jobId == 42 {
			return errors.New("job failed")
		}
		return nil
	})
	assert.ErrorContains(t, err, "job failed")
	err = Parallel(context.Background(), 100, 1, func(_, jobId int) error {
		if jobId == 42 {
			return errors.New("job failed")
		}
		return nil
	})
	assert.ErrorContains(t, err, "job failed")
}

func TestParallelPanic(t *testing.T) {
	err := Parallel(context.Background(), 10, 2, func(_, jobId int) error {
		if jobId == 3 {
			panic("boom")
		}
		return nil
	})
	assert.ErrorContains(t, err, "boom")
}

func TestFor(t *testing.T) {
	a := lo.Range(10000)
	b := make([]int, len(a))
	err := For(context.Background(), len(a), 4, func(jobId int) {
		b[jobId] = a[jobId]
	})
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestForCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var count atomic.Int32
	err := For(ctx, 1000, 4, func(jobId int) {
		if jobId == 0 {
			cancel()
		}
		count.Add(1)
		time.Sleep(100 * time.Microsecond)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, int(count.Load()), 1000)
}

func TestSplit(t *testing.T) {
	a := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	b := Split(a, 3)
	assert.Equal(t, [][]int{{1, 2, 3, 4}, {5, 6, 7}, {8, 9, 10}}, b)
	c := Split(a, 30)
	assert.Len(t, c, 10)
	assert.Nil(t, Split([]int{}, 3))
}
