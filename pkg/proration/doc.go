// Package proration computes partial-period credits and charges for mid-cycle
// subscription price changes. It is a pure function component: no clock, no
// storage, no side effects; callers pass explicit period bounds and "now".
package proration
