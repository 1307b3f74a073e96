// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Attack names the estimator that produced a report.
type Attack string

const (
	AttackHybridDecoding Attack = "hybrid-decoding"
	AttackHybridDual     Attack = "hybrid-dual"
)

// Log2 is a base-2 logarithm of a cost. +Inf marks an infeasible cost and is
// encoded in JSON as the string "inf".
type Log2 float64

func (l Log2) String() string {
	if math.IsInf(float64(l), 1) {
		return "∞"
	}
	return fmt.Sprintf("2^%.1f", float64(l))
}

func (l Log2) MarshalJSON() ([]byte, error) {
	return marshalFloat(float64(l))
}

func (l *Log2) UnmarshalJSON(b []byte) error {
	v, err := unmarshalFloat(b)
	*l = Log2(v)
	return err
}

// Count is a repetition count; it may be +Inf.
type Count float64

func (c Count) String() string {
	v := float64(c)
	switch {
	case math.IsInf(v, 1):
		return "∞"
	case v < 1<<20:
		return strconv.FormatFloat(v, 'f', 0, 64)
	default:
		return fmt.Sprintf("2^%.1f", math.Log2(v))
	}
}

func (c Count) MarshalJSON() ([]byte, error) {
	return marshalFloat(float64(c))
}

func (c *Count) UnmarshalJSON(b []byte) error {
	v, err := unmarshalFloat(b)
	*c = Count(v)
	return err
}

func marshalFloat(v float64) ([]byte, error) {
	if math.IsInf(v, 1) {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(v)
}

func unmarshalFloat(b []byte) (float64, error) {
	if string(b) == `"inf"` {
		return math.Inf(1), nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return 0, fmt.Errorf("decode number: %w", err)
	}
	return v, nil
}

// CostReport is the structured result of one estimate. Only the fields of
// the producing attack are meaningful; Entries lists them in display order.
type CostReport struct {
	Attack     Attack `json:"attack"`
	Model      string `json:"model"`
	Infeasible bool   `json:"infeasible,omitempty"`

	Rop    Log2  `json:"rop"`
	Beta   int   `json:"beta"`
	D      int   `json:"d"`
	Repeat Count `json:"repeat"`

	// Hybrid decoding.
	Pre            Log2    `json:"pre,omitempty"`
	Enum           Log2    `json:"enum,omitempty"`
	LogSearchSpace Log2    `json:"log_search_space,omitempty"`
	Probability    float64 `json:"prob,omitempty"`
	Scale          float64 `json:"scale,omitempty"`
	PP             int     `json:"pp,omitempty"`
	Tau            int     `json:"tau,omitempty"`
	Searched       bool    `json:"searched,omitempty"`

	// Hybrid dual.
	M           int     `json:"m,omitempty"`
	Red         Log2    `json:"red,omitempty"`
	Delta0      float64 `json:"delta_0,omitempty"`
	C           float64 `json:"c,omitempty"`
	K           int     `json:"k,omitempty"`
	Postprocess int     `json:"postprocess,omitempty"`
	MITM        bool    `json:"mitm"`
}

// Entry is one labelled field of a report.
type Entry struct {
	Label string
	Value string
}

// Entries returns the report's fields in their canonical order.
func (r CostReport) Entries() []Entry {
	if r.Attack == AttackHybridDual {
		return []Entry{
			{"rop", r.Rop.String()},
			{"m", strconv.Itoa(r.M)},
			{"red", r.Red.String()},
			{"δ_0", strconv.FormatFloat(r.Delta0, 'f', 6, 64)},
			{"beta", strconv.Itoa(r.Beta)},
			{"repeat", r.Repeat.String()},
			{"d", strconv.Itoa(r.D)},
			{"c", strconv.FormatFloat(r.C, 'f', 3, 64)},
			{"k", strconv.Itoa(r.K)},
			{"postprocess", strconv.Itoa(r.Postprocess)},
			{"mitm", strconv.FormatBool(r.MITM)},
		}
	}
	e := []Entry{
		{"rop", r.Rop.String()},
		{"pre", r.Pre.String()},
		{"enum", r.Enum.String()},
		{"beta", strconv.Itoa(r.Beta)},
		{"|S|", r.LogSearchSpace.String()},
		{"prob", strconv.FormatFloat(r.Probability, 'f', 6, 64)},
		{"scale", strconv.FormatFloat(r.Scale, 'f', 3, 64)},
		{"pp", strconv.Itoa(r.PP)},
		{"d", strconv.Itoa(r.D)},
		{"repeat", r.Repeat.String()},
	}
	if r.Searched {
		e = append(e, Entry{"tau", strconv.Itoa(r.Tau)})
	}
	return e
}

// Better reports whether r is strictly cheaper than other.
func (r CostReport) Better(other CostReport) bool {
	return r.Rop < other.Rop
}

func infeasible(r CostReport) CostReport {
	inf := Log2(math.Inf(1))
	r.Infeasible = true
	r.Rop = inf
	r.Repeat = Count(math.Inf(1))
	if r.Attack == AttackHybridDual {
		r.Red = inf
	} else {
		r.Pre, r.Enum = inf, inf
	}
	return r
}
