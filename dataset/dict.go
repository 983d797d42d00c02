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

package dataset

// Dict maps sparse identifiers to dense indices and counts references.
type Dict[T comparable] struct {
	si  map[T]int
	is  []T
	cnt []int
}

func NewDict[T comparable]() *Dict[T] {
	return &Dict[T]{si: map[T]int{}}
}

func (d *Dict[T]) Count() int {
	return len(d.is)
}

// Add registers s without counting it and returns its index.
func (d *Dict[T]) Add(s T) int {
	if y, ok := d.si[s]; ok {
		return y
	}
	y := len(d.is)
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 0)
	return y
}

// Index returns the index of s, or -1 if s has not been added.
func (d *Dict[T]) Index(s T) int {
	if y, ok := d.si[s]; ok {
		return y
	}
	return -1
}

func (d *Dict[T]) Inc(id int) {
	if id >= 0 && id < len(d.cnt) {
		d.cnt[id]++
	}
}

func (d *Dict[T]) Value(id int) (s T, ok bool) {
	if id < 0 || id >= len(d.is) {
		return s, false
	}
	return d.is[id], true
}

func (d *Dict[T]) Freq(id int) int {
	if id < 0 || id >= len(d.cnt) {
		return 0
	}
	return d.cnt[id]
}
