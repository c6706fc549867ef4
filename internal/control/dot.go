package control

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/sg47/plane-slam/internal/smoother"
)

// WriteGraphDOT writes a DOT-compatible textual snapshot of the factor
// graph to w — variables as nodes, factors as hyperedges realized as a
// factor node connected to every variable it touches. Exact layout is
// not load-bearing; it's for visualization and debugging only.
func WriteGraphDOT(w io.Writer, factors []smoother.Factor) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("graph plane_slam {\n"); err != nil {
		return errors.Wrap(err, "control: write graph dot header")
	}

	for i, f := range factors {
		factorNode := fmt.Sprintf("f%d", i)
		var label string
		var vars []string
		switch f.Kind {
		case smoother.FactorPosePrior:
			label = "pose_prior"
			vars = []string{f.PoseKey}
		case smoother.FactorDirectionPrior:
			label = "direction_prior"
			vars = []string{f.PlaneKey}
		case smoother.FactorBetweenPose:
			label = "between_pose"
			vars = []string{f.FromKey, f.ToKey}
		case smoother.FactorPlaneObservation:
			label = "plane_observation"
			vars = []string{f.ObsPoseKey, f.ObsPlaneKey}
		default:
			label = "unknown"
		}
		if _, err := fmt.Fprintf(bw, "  %s [shape=box,label=%q];\n", factorNode, label); err != nil {
			return errors.Wrap(err, "control: write graph dot factor")
		}
		for _, v := range vars {
			if _, err := fmt.Fprintf(bw, "  %s -- %s;\n", factorNode, v); err != nil {
				return errors.Wrap(err, "control: write graph dot edge")
			}
		}
	}

	if _, err := bw.WriteString("}\n"); err != nil {
		return errors.Wrap(err, "control: write graph dot footer")
	}
	return bw.Flush()
}
