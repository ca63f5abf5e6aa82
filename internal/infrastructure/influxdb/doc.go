// Package influxdb mirrors journal events to an InfluxDB v2 bucket for
// dashboards and long-term trends. The mirror is optional; the bridge
// runs fine without it and never blocks on it.
package influxdb
