package mongodb

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"

	"basement-monitor/internal/models"
)

func TestFilter(t *testing.T) {
	tests := []struct {
		name     string
		filter   models.Filter
		withType bool
		want     bson.M
	}{
		{"empty", models.Filter{}, true, bson.M{}},
		{"device and type", models.Filter{DeviceID: "a", ReadingType: models.Humidity}, true, bson.M{"dev_id": "a", "alert_type": "humidity"}},
		{"readings ignore type", models.Filter{DeviceID: "a", ReadingType: models.Humidity}, false, bson.M{"dev_id": "a"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, filter(tc.filter, tc.withType)); diff != "" {
				t.Errorf("filter (-want +got):\n%s", diff)
			}
		})
	}
}

func TestKey(t *testing.T) {
	want := bson.M{"dev_id": "RazPi_01", "alert_type": "temp"}
	if diff := cmp.Diff(want, key("RazPi_01", models.Temperature)); diff != "" {
		t.Errorf("key (-want +got):\n%s", diff)
	}
}
