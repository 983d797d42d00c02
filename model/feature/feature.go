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

// Package feature turns user profiles into numeric vectors. The column layout
// is defined once in Schema and shared by training and inference.
package feature

import (
	"github.com/gorse-io/cinecluster/common/log"
	"github.com/gorse-io/cinecluster/dataset"
	"go.uber.org/zap"
)

// Vector is the feature vector of a user, laid out as Schema.
type Vector []float64

// Column extracts one feature from a user.
type Column struct {
	Name    string
	Extract func(user dataset.User) float64
}

// Schema is the ordered column layout: one-hot gender followed by age.
// Both gender columns are always present.
var Schema = []Column{
	{Name: "F", Extract: genderIndicator("F")},
	{Name: "M", Extract: genderIndicator("M")},
	{Name: "age", Extract: func(user dataset.User) float64 { return float64(user.Age) }},
}

func genderIndicator(gender string) func(user dataset.User) float64 {
	return func(user dataset.User) float64 {
		if user.Gender == gender {
			return 1
		}
		return 0
	}
}

// Columns returns the column names of Schema.
func Columns() []string {
	names := make([]string, len(Schema))
	for i, column := range Schema {
		names[i] = column.Name
	}
	return names
}

// Dim is the number of columns.
func Dim() int {
	return len(Schema)
}

// BuildUserFeatures builds the feature vector of a user. An unknown gender
// leaves both gender columns at 0.
func BuildUserFeatures(user dataset.User) Vector {
	if user.Gender != "M" && user.Gender != "F" {
		log.Logger().Debug("unknown gender", zap.Int64("user_id", user.UserId), zap.String("gender", user.Gender))
	}
	v := make(Vector, len(Schema))
	for i, column := range Schema {
		v[i] = column.Extract(user)
	}
	return v
}

// BuildUserMatrix builds one row per user in input order.
func BuildUserMatrix(users []dataset.User) [][]float64 {
	x := make([][]float64, len(users))
	for i, user := range users {
		x[i] = BuildUserFeatures(user)
	}
	return x
}
