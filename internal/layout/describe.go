package layout

import (
	"strings"

	"abmviz/domain/catalogue"
	"abmviz/domain/dataset"
	"abmviz/domain/tensor"
)

// Describe labels each axis of an array with the catalogue dimension whose
// reference length it matches. Axis 1 of length one on a _mean variable is
// the collapsed experiment axis. Tagged arrays are labelled by their tags.
func Describe(name string, arr *tensor.Array, cat *catalogue.Catalogue) []string {
	return DescribeShape(name, arr.Shape(), arr.Axes(), cat)
}

// DescribeShape is Describe for an array known only by its shape and tags
func DescribeShape(name string, shape []int, axes []tensor.Dim, cat *catalogue.Catalogue) []string {
	if len(axes) == len(shape) && len(axes) > 0 {
		out := make([]string, len(axes))
		for i, d := range axes {
			out[i] = string(d)
		}
		return out
	}

	out := make([]string, len(shape))
	for j, n := range shape {
		if strings.HasSuffix(name, dataset.MeanSuffix) && j == 1 && n == 1 {
			out[j] = "experiment mean"
			continue
		}
		out[j] = "unknown"
		for _, d := range cat.Dimensions() {
			if cat.Len(d) == n {
				out[j] = string(d)
				break
			}
		}
	}
	return out
}
