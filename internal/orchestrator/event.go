package orchestrator

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Notification is an object-created event delivery. The shape mirrors the
// storage service's notification format; a delivery carries one or more
// records, each processed independently.
type Notification struct {
	Records []Record `json:"Records"`
}

// Record is a single object-created entry inside a notification.
type Record struct {
	EventName string `json:"eventName"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}

// ParseNotification decodes a notification payload.
func ParseNotification(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("parse notification: %w", err)
	}
	return n, nil
}

// Key returns the record's object key with the notification's URL encoding
// undone. Keys arrive with spaces encoded as "+".
func (r Record) Key() (string, error) {
	key, err := url.QueryUnescape(r.S3.Object.Key)
	if err != nil {
		return "", fmt.Errorf("decode object key %q: %w", r.S3.Object.Key, err)
	}
	return key, nil
}
