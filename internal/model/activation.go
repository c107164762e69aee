package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type activation func(z *mat.Dense)

var activations = map[string]activation{
	"":        func(*mat.Dense) {},
	"linear":  func(*mat.Dense) {},
	"relu":    elementwise(func(v float64) float64 { return math.Max(0, v) }),
	"sigmoid": elementwise(func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }),
	"tanh":    elementwise(math.Tanh),
	"softmax": softmax,
}

func elementwise(fn func(float64) float64) activation {
	return func(z *mat.Dense) {
		z.Apply(func(_, _ int, v float64) float64 { return fn(v) }, z)
	}
}

// softmax normalizes each row, shifted by its max for stability.
func softmax(z *mat.Dense) {
	rows, _ := z.Dims()
	for i := 0; i < rows; i++ {
		row := z.RawRowView(i)
		peak := math.Inf(-1)
		for _, v := range row {
			peak = math.Max(peak, v)
		}
		sum := 0.0
		for j, v := range row {
			row[j] = math.Exp(v - peak)
			sum += row[j]
		}
		for j := range row {
			row[j] /= sum
		}
	}
}
