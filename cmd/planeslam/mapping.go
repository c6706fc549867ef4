package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sg47/plane-slam/internal/control"
	"github.com/sg47/plane-slam/internal/mapping"
)

// buildEngine feeds frameCount synthetic frames through a fresh engine.
// A real deployment keeps one Engine alive for the process lifetime, fed
// by a ROS-style subscriber; this CLI has no such subscriber, so each
// invocation replays a synthetic trajectory before running the
// requested command.
func buildEngine(frameCount int, verbose bool) (*mapping.Engine, error) {
	logger := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		logger = l
	}
	engine := mapping.NewEngine(control.DefaultConfig(), logger.Sugar())
	for _, frame := range syntheticFrames(frameCount) {
		if _, err := engine.Mapping(frame); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

func newMappingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Drive the mapping engine",
	}
	cmd.AddCommand(newRunCmd(), newOptimizeCmd(), newSaveMapCmd(), newSaveGraphCmd(), newPruneCmd())
	return cmd
}

func newRunCmd() *cobra.Command {
	var frames int
	var verbose bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Feed a synthetic frame sequence through the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := buildEngine(frames, verbose)
			if err != nil {
				return err
			}
			path := engine.OptimizedPath()
			landmarks := engine.Landmarks()
			fmt.Printf("poses=%d landmarks=%d\n", len(path), len(landmarks))
			return nil
		},
	}
	cmd.Flags().IntVar(&frames, "frames", 5, "number of synthetic keyframes to feed")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable development logging")
	return cmd
}

func newOptimizeCmd() *cobra.Command {
	var frames, rounds int
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Run N relinearization rounds over a synthetic map",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := buildEngine(frames, false)
			if err != nil {
				return err
			}
			if err := engine.OptimizeGraph(rounds); err != nil {
				return err
			}
			fmt.Printf("optimized %d rounds\n", rounds)
			return nil
		},
	}
	cmd.Flags().IntVar(&frames, "frames", 5, "number of synthetic keyframes to feed first")
	cmd.Flags().IntVar(&rounds, "rounds", 10, "relinearization rounds")
	return cmd
}

func newSaveMapCmd() *cobra.Command {
	var frames int
	var path string
	cmd := &cobra.Command{
		Use:   "save-map",
		Short: "Save the landmark clouds to a PCD-ASCII file",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := buildEngine(frames, false)
			if err != nil {
				return err
			}
			if err := engine.SaveMap(path); err != nil {
				return err
			}
			fmt.Printf("map written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().IntVar(&frames, "frames", 5, "number of synthetic keyframes to feed first")
	cmd.Flags().StringVar(&path, "out", "map.pcd", "output path")
	return cmd
}

func newSaveGraphCmd() *cobra.Command {
	var frames int
	var path string
	cmd := &cobra.Command{
		Use:   "save-graph",
		Short: "Save the factor graph structure as a DOT file",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := buildEngine(frames, false)
			if err != nil {
				return err
			}
			if err := engine.SaveGraph(path); err != nil {
				return err
			}
			fmt.Printf("graph written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().IntVar(&frames, "frames", 5, "number of synthetic keyframes to feed first")
	cmd.Flags().StringVar(&path, "out", "graph.dot", "output path")
	return cmd
}

func newPruneCmd() *cobra.Command {
	var frames int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Run radius-based bad-inlier removal over a synthetic map",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := buildEngine(frames, false)
			if err != nil {
				return err
			}
			if err := engine.RemoveBadInlier(); err != nil {
				return err
			}
			fmt.Println("bad-inlier removal complete")
			return nil
		},
	}
	cmd.Flags().IntVar(&frames, "frames", 5, "number of synthetic keyframes to feed first")
	return cmd
}
