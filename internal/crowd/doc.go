// Package crowd owns crowd detection over a stream of per-frame person
// positions.
//
// Responsibilities: proximity grouping of one frame's points into clusters,
// cluster similarity across frames, track lifecycle (creation, extension,
// closing) and the duration filter that turns closed tracks into crowd
// events.
// Key types: Point, Cluster, Track, CrowdEvent, Tracker.
//
// Dependency rule: this package performs no I/O and never logs. Decoding
// detector output, persistence and rendering live in ingest, export and the
// db package.
package crowd
