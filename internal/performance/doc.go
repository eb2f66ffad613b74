// Package performance aggregates delivery and engagement telemetry per
// channel and campaign.
//
// One tracking session runs per orchestration: a recurring collection cycle
// polls the channel provider for every tracked channel, merges counts
// additively into running totals, and appends a ring-buffered time-series
// snapshot. A fetch failure for one channel is logged and skipped; it never
// aborts collection for sibling channels. Cross-channel summary statistics
// and trend direction are derived on demand.
package performance
