package control

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/sg47/plane-slam/internal/cloud"
	"github.com/sg47/plane-slam/internal/landmark"
)

// WriteMapPCD writes the concatenation of every valid landmark's colored
// inlier cloud to w in PCD-ASCII, fields "x y z rgba" — the persisted
// map format. The header convention (VERSION/FIELDS/SIZE/TYPE/
// COUNT/WIDTH/HEIGHT/VIEWPOINT/POINTS/DATA) follows
// pointcloud_file_test.go's PCD fixture, generalized from "x y z rgb" to
// a packed "rgba" field.
func WriteMapPCD(w io.Writer, landmarks []landmark.Landmark) error {
	var all cloud.Cloud
	for _, l := range landmarks {
		if !l.Valid {
			continue
		}
		all = cloud.Concat(all, l.Cloud)
	}

	bw := bufio.NewWriter(w)
	header := "# .PCD v.7 - Point Cloud Data file format\n" +
		"VERSION .7\n" +
		"FIELDS x y z rgba\n" +
		"SIZE 4 4 4 4\n" +
		"TYPE F F F U\n" +
		"COUNT 1 1 1 1\n"
	if _, err := bw.WriteString(header); err != nil {
		return errors.Wrap(err, "control: write map pcd header")
	}
	if _, err := bw.WriteString(pcdCountLines(len(all))); err != nil {
		return errors.Wrap(err, "control: write map pcd header")
	}
	if _, err := bw.WriteString("DATA ascii\n"); err != nil {
		return errors.Wrap(err, "control: write map pcd header")
	}
	for _, p := range all {
		rgba := packRGBA(p.Color)
		if _, err := fmt.Fprintf(bw, "%g %g %g %d\n", p.Position.X, p.Position.Y, p.Position.Z, rgba); err != nil {
			return errors.Wrap(err, "control: write map pcd point")
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "control: flush map pcd")
	}
	return nil
}

func packRGBA(c cloud.Color) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}

func pcdCountLines(n int) string {
	return fmt.Sprintf("WIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\n", n, n)
}
