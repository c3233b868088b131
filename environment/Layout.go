package environment

import (
	"fmt"

	"github.com/samuelfneumann/lidarnav/utils/matutils"
)

// Layout describes the blocks of an observation row: proprioceptive
// features followed by a lidar scan
type Layout struct {
	Proprio int
	Lidar   int
}

// NewLayout returns a new Layout
func NewLayout(proprio, lidar int) Layout {
	if proprio <= 0 || lidar <= 0 {
		panic(fmt.Sprintf("newlayout: block widths must be positive, have "+
			"(proprio=%v, lidar=%v)", proprio, lidar))
	}
	return Layout{Proprio: proprio, Lidar: lidar}
}

// Width returns the width of an observation row
func (l Layout) Width() int {
	return l.Proprio + l.Lidar
}

// ProprioColumns returns the column range of the proprioceptive block
func (l Layout) ProprioColumns() matutils.ColumnRange {
	return matutils.ColumnRange{Start: 0, End: l.Proprio}
}

// LidarColumns returns the column range of the lidar block
func (l Layout) LidarColumns() matutils.ColumnRange {
	return matutils.ColumnRange{Start: l.Proprio, End: l.Width()}
}
