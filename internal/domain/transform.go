package domain

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jonboulle/clockwork"
)

// ParseRawRecord decodes a source message into a MonthlyMetric and validates it.
// The message timestamp becomes the ingestion timestamp unless the payload
// carries its own; a record with neither is stamped with clock's current time.
func ParseRawRecord(raw RawRecord, clock clockwork.Clock) (MonthlyMetric, error) {
	var m MonthlyMetric
	if err := json.Unmarshal(raw.Value, &m); err != nil {
		return MonthlyMetric{}, fmt.Errorf("%w: decode: %w", ErrInvalidMetric, err)
	}

	m.DistrictCode = NormalizeCode(m.DistrictCode)
	if m.IngestedAt.IsZero() {
		m.IngestedAt = raw.Timestamp
	}
	if m.IngestedAt.IsZero() {
		m.IngestedAt = clock.Now()
	}
	m.IngestedAt = m.IngestedAt.UTC()

	if err := m.Validate(); err != nil {
		return MonthlyMetric{}, err
	}
	return m, nil
}

// RejectRawRecord builds the dead-letter copy of raw, tagging it with the
// failure reason and its source position.
func RejectRawRecord(raw RawRecord, cause error) RejectedRecord {
	headers := make(map[string]string, len(raw.Headers)+4)
	for k, v := range raw.Headers {
		headers[k] = v
	}
	headers["error"] = cause.Error()
	headers["source_topic"] = raw.Topic
	headers["source_partition"] = strconv.Itoa(raw.Partition)
	headers["source_offset"] = strconv.FormatInt(raw.Offset, 10)

	return RejectedRecord{
		Key:     raw.Key,
		Value:   raw.Value,
		Headers: headers,
	}
}
