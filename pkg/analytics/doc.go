// Package analytics builds read-only revenue and lifecycle reports over the
// subscription ledger: status/tier/cycle distributions, MRR/ARR, churn,
// transaction revenue, cohort retention, and a naive MRR forecast. Reports
// are derived views recomputed on demand and never persisted.
package analytics
