// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const columnWidth = 8

// WriteTable prints the report as right-aligned "label: value" lines.
func WriteTable(w io.Writer, r CostReport) error {
	entries := r.Entries()
	lw, vw := columnWidth, columnWidth
	for _, e := range entries {
		lw = max(lw, runewidth.StringWidth(e.Label))
		vw = max(vw, runewidth.StringWidth(e.Value))
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s: %s\n", runewidth.FillLeft(e.Label, lw), runewidth.FillLeft(e.Value, vw)); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}

func (r CostReport) String() string {
	var b strings.Builder
	_ = WriteTable(&b, r)
	return b.String()
}
