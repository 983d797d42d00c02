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

package master

import (
	"fmt"
	"image/color"
	"io"

	"github.com/gorse-io/cinecluster/model/cluster"
	"github.com/juju/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// PlotElbow draws inertia against k and marks the selected k.
func PlotElbow(inertias []float64, k int) (io.WriterTo, error) {
	p := plot.New()
	p.Title.Text = "Elbow Method for Optimal K"
	p.X.Label.Text = "Number of clusters (k)"
	p.Y.Label.Text = "Inertia"
	p.Add(plotter.NewGrid())

	points := make(plotter.XYs, len(inertias))
	for i, inertia := range inertias {
		points[i].X = float64(i + 1)
		points[i].Y = inertia
	}
	line, scatter, err := plotter.NewLinePoints(points)
	if err != nil {
		return nil, errors.Trace(err)
	}
	line.Color = plotutil.Color(0)
	scatter.Color = plotutil.Color(0)
	scatter.Shape = draw.CircleGlyph{}
	p.Add(line, scatter)

	if k >= 1 && k <= len(inertias) {
		selected, err := plotter.NewScatter(plotter.XYs{{X: float64(k), Y: inertias[k-1]}})
		if err != nil {
			return nil, errors.Trace(err)
		}
		selected.Color = color.RGBA{R: 220, A: 255}
		selected.Shape = draw.RingGlyph{}
		selected.Radius = vg.Points(8)
		p.Add(selected)
		p.Legend.Add(fmt.Sprintf("k = %d", k), selected)
	}
	return p.WriterTo(plotWidth, plotHeight, "png")
}

// PlotClusters draws scaled samples projected on two principal components,
// colored by label, with the projected centroids.
func PlotClusters(x [][]float64, model *cluster.KMeans, labels []int) (io.WriterTo, error) {
	points, centers, err := cluster.Project(x, model.Centroids)
	if err != nil {
		return nil, errors.Trace(err)
	}
	p := plot.New()
	p.Title.Text = "User Clusters Visualization (PCA)"
	p.X.Label.Text = "First Principal Component"
	p.Y.Label.Text = "Second Principal Component"

	groups := make([]plotter.XYs, model.K())
	for i, label := range labels {
		groups[label] = append(groups[label], plotter.XY{X: points[i][0], Y: points[i][1]})
	}
	for c, group := range groups {
		if len(group) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(group)
		if err != nil {
			return nil, errors.Trace(err)
		}
		scatter.Color = plotutil.Color(c)
		scatter.Shape = draw.CircleGlyph{}
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("Cluster %d", c), scatter)
	}

	centroids := make(plotter.XYs, len(centers))
	for c, center := range centers {
		centroids[c] = plotter.XY{X: center[0], Y: center[1]}
	}
	scatter, err := plotter.NewScatter(centroids)
	if err != nil {
		return nil, errors.Trace(err)
	}
	scatter.Color = color.Black
	scatter.Shape = draw.CrossGlyph{}
	scatter.Radius = vg.Points(6)
	p.Add(scatter)
	p.Legend.Add("Centroids", scatter)
	return p.WriterTo(plotWidth, plotHeight, "png")
}
