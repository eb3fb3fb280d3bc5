// Package schedule drives the engine's two background jobs, the daily
// renewal batch and the hourly billing issue detection, from cron
// expressions. The engine itself stays free of scheduling constructs: jobs
// are plain entry points taking an explicit "as of" time, so tests invoke
// them directly without a timer.
package schedule
