/*
Package observability turns controller lifecycle events into Prometheus
metrics and audit log records.

Both are plain domain.LifecycleHooks values; Combine chains several of them
so a run can feed metrics and logs at once.
*/
package observability
