package main

import (
	"errors"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// writeDeliveryReport plots the delivered-agents count over simulation time
// and saves it as an image (the format follows the file extension).
func writeDeliveryReport(times, delivered []float64, path string) error {
	if len(times) != len(delivered) {
		return errors.New("mismatched report series lengths")
	}
	if len(times) == 0 {
		return errors.New("nothing to plot")
	}

	p := plot.New()
	p.Title.Text = "seed message propagation"
	p.X.Label.Text = "simulation time (s)"
	p.Y.Label.Text = "agents that have held the seed message"

	pts := make(plotter.XYs, len(times))
	for i := range times {
		pts[i].X = times[i]
		pts[i].Y = delivered[i]
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line)
	p.Add(plotter.NewGrid())

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}
