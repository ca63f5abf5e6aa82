package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteComponentEvent records one component event. Tags carry the low
// cardinality identity (which component, state or command); the payload
// rides in a field. Non-blocking; errors surface via SetOnError.
//
// This satisfies journal.Mirror.
func (c *Client) WriteComponentEvent(objectID, source, payload string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"component_events",
		map[string]string{
			"object_id": objectID,
			"source":    source,
		},
		map[string]interface{}{
			"payload": payload,
			"count":   1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom measurement with full control over tags and
// fields, for anything the helper doesn't cover.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
