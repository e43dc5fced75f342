package cdb

import (
	"fmt"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/shopspring/decimal"
)

// InstancesAttributes holds the per-instance attribute columns of a batch of
// instanced features. Every column has exactly InstancesCount entries.
type InstancesAttributes struct {
	cnams          []string
	integerAttribs map[string][]int32
	doubleAttribs  map[string][]float64
	stringAttribs  map[string][]string
}

func NewInstancesAttributes() *InstancesAttributes {
	return &InstancesAttributes{
		integerAttribs: make(map[string][]int32),
		doubleAttribs:  make(map[string][]float64),
		stringAttribs:  make(map[string][]string),
	}
}

func (a *InstancesAttributes) InstancesCount() int {
	if a == nil {
		return 0
	}
	return len(a.cnams)
}

func (a *InstancesAttributes) CNAMs() []string                   { return a.cnams }
func (a *InstancesAttributes) IntegerAttribs() map[string][]int32 { return a.integerAttribs }
func (a *InstancesAttributes) DoubleAttribs() map[string][]float64 {
	return a.doubleAttribs
}
func (a *InstancesAttributes) StringAttribs() map[string][]string { return a.stringAttribs }

func (a *InstancesAttributes) AddCNAM(cnam string) {
	a.cnams = append(a.cnams, cnam)
}

func (a *InstancesAttributes) AddInteger(name string, v int32) {
	a.integerAttribs[name] = append(a.integerAttribs[name], v)
}

func (a *InstancesAttributes) AddDouble(name string, v float64) {
	a.doubleAttribs[name] = append(a.doubleAttribs[name], v)
}

func (a *InstancesAttributes) AddString(name string, v string) {
	a.stringAttribs[name] = append(a.stringAttribs[name], v)
}

// Validate checks that every column has exactly one value per instance.
func (a *InstancesAttributes) Validate() error {
	n := a.InstancesCount()
	for name, col := range a.integerAttribs {
		if len(col) != n {
			return fmt.Errorf("attribute column %q has %d values for %d instances", name, len(col), n)
		}
	}
	for name, col := range a.doubleAttribs {
		if len(col) != n {
			return fmt.Errorf("attribute column %q has %d values for %d instances", name, len(col), n)
		}
	}
	for name, col := range a.stringAttribs {
		if len(col) != n {
			return fmt.Errorf("attribute column %q has %d values for %d instances", name, len(col), n)
		}
	}
	return nil
}

// DoubleAt returns the i-th value of a double column, with a default when the
// column is absent.
func (a *InstancesAttributes) DoubleAt(name string, i int, def float64) float64 {
	col, ok := a.doubleAttribs[name]
	if !ok || i >= len(col) {
		return def
	}
	return col[i]
}

// readAttributeRow decodes one DBF record of an open shapefile reader into the
// attribute table. DBF numeric fields arrive as text; they are parsed exactly
// with decimal before narrowing to int32 or float64.
func (a *InstancesAttributes) readAttributeRow(r *shp.Reader, row int, fields []shp.Field) error {
	sawCNAM := false
	for j, field := range fields {
		name := strings.TrimRight(fieldName(field), "\x00")
		raw := strings.TrimSpace(r.ReadAttribute(row, j))

		if name == "CNAM" {
			a.AddCNAM(raw)
			sawCNAM = true
			continue
		}

		switch field.Fieldtype {
		case 'N', 'F':
			if raw == "" {
				raw = "0"
			}
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return fmt.Errorf("attribute %s row %d: %q is not numeric: %w", name, row, raw, err)
			}
			if field.Fieldtype == 'N' && field.Precision == 0 {
				a.AddInteger(name, int32(d.IntPart()))
			} else {
				a.AddDouble(name, d.InexactFloat64())
			}
		default:
			a.AddString(name, raw)
		}
	}

	if !sawCNAM {
		a.AddCNAM("")
	}
	return nil
}

func fieldName(f shp.Field) string {
	return string(f.Name[:])
}
