/*
Package observability provides lifecycle hooks for monitoring the dispatcher and
the update sub-protocol.

Metrics exports Prometheus counters and histograms per agent and method, and
per update delivery. LogHooks writes the same events to a structured logger.
Hooks from several sources are merged with Combine.
*/
package observability
