package postgres

import (
	"encoding/json"

	"github.com/transcriptapi/core/internal/domain/model"
)

type segmentRow struct {
	Text            string  `json:"text"`
	StartSeconds    float64 `json:"start_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func encodeSegments(segments []model.Segment) ([]byte, error) {
	rows := make([]segmentRow, len(segments))
	for i, s := range segments {
		rows[i] = segmentRow{Text: s.Text, StartSeconds: s.StartSeconds, DurationSeconds: s.DurationSeconds}
	}
	return json.Marshal(rows)
}

func decodeSegments(data []byte) ([]model.Segment, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var rows []segmentRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	segments := make([]model.Segment, len(rows))
	for i, r := range rows {
		segments[i] = model.Segment{Text: r.Text, StartSeconds: r.StartSeconds, DurationSeconds: r.DurationSeconds}
	}
	return segments, nil
}
