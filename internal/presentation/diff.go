package presentation

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffOp classifies a diff line.
type DiffOp string

const (
	DiffEqual   DiffOp = "equal"
	DiffAdded   DiffOp = "added"
	DiffDeleted DiffOp = "deleted"
)

// DiffLine is one line of a line-level diff.
type DiffLine struct {
	Op   DiffOp `json:"op"`
	Text string `json:"text"`
}

// Diff compares two texts line by line.
func Diff(before, after string) []DiffLine {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var out []DiffLine
	for _, d := range diffs {
		op := DiffEqual
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = DiffAdded
		case diffmatchpatch.DiffDelete:
			op = DiffDeleted
		}
		for _, text := range strings.SplitAfter(d.Text, "\n") {
			if text == "" {
				continue
			}
			out = append(out, DiffLine{Op: op, Text: strings.TrimSuffix(text, "\n")})
		}
	}
	return out
}

// Changed reports whether any line was added or deleted.
func Changed(lines []DiffLine) bool {
	for _, l := range lines {
		if l.Op != DiffEqual {
			return true
		}
	}
	return false
}
