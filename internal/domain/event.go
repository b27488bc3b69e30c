package domain

import (
	"context"
	"time"
)

// RawRecord is an unprocessed message from the metrics source topic.
type RawRecord struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// RejectedRecord is a source message that failed parsing or validation,
// destined for the dead-letter topic.
type RejectedRecord struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
