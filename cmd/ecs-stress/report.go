package main

import (
	"fmt"
	"io"
	"runtime"
	"slices"
	"text/template"
	"time"

	"github.com/plus3/arkecs/ecs"
)

// Report collects one stress run for the text/template summary.
type Report struct {
	// Configuration
	Ticks       int
	Entities    int
	Churn       float64
	RefreshMode string

	// Results
	TotalTime      time.Duration
	UpdateTime     Stats
	Created        int
	Destroyed      int
	Storage        ecs.StorageStats
	Scheduler      *ecs.SchedulerStats
	GCPauseMetrics bool
	MemStatsStart  runtime.MemStats
	MemStatsEnd    runtime.MemStats
}

// Stats summarises per-tick durations.
type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	P50     time.Duration
	P99     time.Duration
	Samples []time.Duration
}

func (s *Stats) Finalize() {
	if len(s.Samples) == 0 {
		return
	}
	sorted := slices.Sorted(slices.Values(s.Samples))

	var total time.Duration
	for _, sample := range sorted {
		total += sample
	}
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Avg = total / time.Duration(len(sorted))
	s.P50 = sorted[len(sorted)/2]
	s.P99 = sorted[(len(sorted)-1)*99/100]
}

const reportTemplate = `
# ECS Stress Test Report

## Test Configuration
- **Ticks:** {{.Ticks}}
- **Initial Entities:** {{.Entities}}
- **Churn per Tick:** {{.Churn}}
- **Query Refresh:** {{.RefreshMode}}

## Tick Timing
- **Total Test Time:** {{.TotalTime}}
- **Avg / P50 / P99:** {{.UpdateTime.Avg}} / {{.UpdateTime.P50}} / {{.UpdateTime.P99}}
- **Min / Max:** {{.UpdateTime.Min}} / {{.UpdateTime.Max}}

## Entity Churn
- **Created:** {{.Created}}
- **Destroyed:** {{.Destroyed}}
- **Live at End:** {{.Storage.EntityCount}} ({{.Storage.FreeSlots}} free slots, {{.Storage.DirtyCount}} pending dirty)
{{range .Storage.Pools}}- Pool {{.Name}}: {{.Live}} live
{{end}}{{with .Scheduler}}
## Systems
{{range .Systems}}- {{.Name}}: avg {{.AvgDuration}}, max {{.MaxDuration}} over {{.ExecutionCount}} runs
{{end}}{{end}}
## Memory
- Heap Alloc: {{.MemStatsStart.HeapAlloc}} -> {{.MemStatsEnd.HeapAlloc}} ({{bsub .MemStatsEnd.HeapAlloc .MemStatsStart.HeapAlloc}} bytes)
- Total Alloc: {{mb (bsub .MemStatsEnd.TotalAlloc .MemStatsStart.TotalAlloc)}} MiB over the run
- GC Cycles: {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}
{{if .GCPauseMetrics}}- GC Pause: {{usub64 .MemStatsEnd.PauseTotalNs .MemStatsStart.PauseTotalNs | ns}}
{{end}}`

func (r *Report) Generate(w io.Writer) error {
	fm := template.FuncMap{
		"mb": func(v int64) string {
			return fmt.Sprintf("%.2f", float64(v)/1024/1024)
		},
		"bsub": func(a, b uint64) int64 {
			return int64(a) - int64(b)
		},
		"usub": func(a, b uint32) uint32 {
			return a - b
		},
		"usub64": func(a, b uint64) uint64 {
			return a - b
		},
		"ns": func(ns uint64) string {
			return time.Duration(ns).String()
		},
	}

	tmpl, err := template.New("report").Funcs(fm).Parse(reportTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, r)
}
