// Copyright 2025 gorse Project Authors
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

package cluster

import (
	"bytes"
	"io"

	"github.com/gorse-io/cinecluster/common/encoding"
	"github.com/juju/errors"
)

// Assignment maps every training user to its cluster label.
type Assignment struct {
	UserIds []int64
	Labels  []int

	index map[int64]int
}

func NewAssignment(userIds []int64, labels []int) (*Assignment, error) {
	if len(userIds) != len(labels) {
		return nil, errors.NotValidf("%d users with %d labels", len(userIds), len(labels))
	}
	a := &Assignment{
		UserIds: userIds,
		Labels:  labels,
		index:   make(map[int64]int, len(userIds)),
	}
	for i, userId := range userIds {
		a.index[userId] = i
	}
	return a, nil
}

// Label of a training user.
func (a *Assignment) Label(userId int64) (int, bool) {
	i, ok := a.index[userId]
	if !ok {
		return 0, false
	}
	return a.Labels[i], true
}

// Members returns users labeled label in training order.
func (a *Assignment) Members(label int) []int64 {
	var members []int64
	for i, l := range a.Labels {
		if l == label {
			members = append(members, a.UserIds[i])
		}
	}
	return members
}

// Sizes counts users per label for k clusters.
func (a *Assignment) Sizes(k int) []int {
	sizes := make([]int, k)
	for _, l := range a.Labels {
		if l >= 0 && l < k {
			sizes[l]++
		}
	}
	return sizes
}

func (a *Assignment) Marshal(w io.Writer) error {
	if err := encoding.WriteInt64s(w, a.UserIds); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteInts(w, a.Labels)
}

func (a *Assignment) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := a.Marshal(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func UnmarshalAssignment(r io.Reader) (*Assignment, error) {
	userIds, err := encoding.ReadInt64s(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	labels, err := encoding.ReadInts(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewAssignment(userIds, labels)
}
