// Package doctor runs health checks over a kiln installation.
package doctor

import (
	"context"
	"fmt"
)

// Status is the outcome of one checked item.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Item is one line of a check's report.
type Item struct {
	Label  string `json:"label"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
	// Fixable marks items that 'kiln doctor --fix' can repair.
	Fixable bool `json:"fixable,omitempty"`
}

func Pass(label, detail string) Item { return Item{Label: label, Status: StatusPass, Detail: detail} }
func Warn(label, detail string) Item { return Item{Label: label, Status: StatusWarn, Detail: detail} }
func Fail(label, detail string) Item { return Item{Label: label, Status: StatusFail, Detail: detail} }

// Result groups the items reported by one check.
type Result struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

func (r *Result) Add(items ...Item) {
	r.Items = append(r.Items, items...)
}

// Check is a single diagnostic.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// RunAll runs checks in order. A check that panics is reported as failed
// and the remaining checks still run.
func RunAll(ctx context.Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		results = append(results, run(ctx, c))
	}
	return results
}

func run(ctx context.Context, c Check) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Name: c.Name(), Items: []Item{Fail("check", fmt.Sprintf("panicked: %v", r))}}
		}
	}()
	return c.Run(ctx)
}

// Summary counts items by status across results.
type Summary struct {
	Passed int `json:"passed"`
	Warned int `json:"warned"`
	Failed int `json:"failed"`
	// Fixable counts unresolved items that --fix can repair.
	Fixable int `json:"fixable"`
}

func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		for _, it := range r.Items {
			switch it.Status {
			case StatusPass:
				s.Passed++
				continue
			case StatusWarn:
				s.Warned++
			case StatusFail:
				s.Failed++
			}
			if it.Fixable {
				s.Fixable++
			}
		}
	}
	return s
}

// Healthy reports whether nothing failed. Warnings do not count.
func (s Summary) Healthy() bool { return s.Failed == 0 }
