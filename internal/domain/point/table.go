package point

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownPoint is returned for addresses outside the point table.
var ErrUnknownPoint = errors.New("unknown measurement point")

// Table holds every measurement point slot of the device.
type Table struct {
	// points is indexed by address.
	points [MaxPoints]*Point
}

// NewTable creates all MaxPoints slots with default names.
func NewTable() *Table {
	t := new(Table)
	for addr := range MaxPoints {
		t.points[addr] = New(addr, "")
	}

	return t
}

// Get returns the point at address.
func (t *Table) Get(address int) (*Point, error) {
	if address < 0 || address >= MaxPoints {
		return nil, fmt.Errorf("point %d: %w", address, ErrUnknownPoint)
	}

	return t.points[address], nil
}

// All returns every point in address order.
func (t *Table) All() []*Point {
	result := make([]*Point, MaxPoints)
	copy(result, t.points[:])

	return result
}

// Bound returns the number of points with a sensor attached.
func (t *Table) Bound() int {
	n := 0

	for _, p := range t.points {
		if p.Sensor() != nil {
			n++
		}
	}

	return n
}

// UpdateAll refreshes every bound point and returns the joined read errors.
// A failing sensor never stops the remaining points from updating.
func (t *Table) UpdateAll(ctx context.Context) error {
	var errs []error

	for _, p := range t.points {
		if err := p.Update(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
