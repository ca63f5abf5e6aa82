// Package journal persists component events to SQLite so a restart does
// not erase the history of presses, presence changes and commands. An
// optional mirror forwards each event to InfluxDB for dashboards.
package journal
