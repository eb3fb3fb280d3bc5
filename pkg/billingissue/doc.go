// Package billingissue tracks billing anomalies (expiring payment methods,
// overdue failed renewals) as deduplicated, explicitly-resolved issue
// records. The detector runs on an hourly-scale tick and is idempotent by
// construction: it queries for an existing open issue per (subscription, type)
// before creating one, so overlapping runs never double-report.
package billingissue
