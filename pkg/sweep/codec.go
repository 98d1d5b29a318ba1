package sweep

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Row and hash stores keep each record as a protobuf-encoded Struct:
//
//	{"value": "<label>", "messages": ["...", ...]}
//
// The labels are the same ones the JSON document uses.

func encodeRecordProto(rec ResultRecord) ([]byte, error) {
	msgs := make([]any, 0, len(rec.Messages))
	for _, m := range rec.Messages {
		msgs = append(msgs, m)
	}
	st, err := structpb.NewStruct(map[string]any{
		"value":    rec.Outcome.String(),
		"messages": msgs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build record struct: %w", err)
	}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return data, nil
}

func decodeRecordProto(candidate string, data []byte) (ResultRecord, error) {
	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return ResultRecord{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	value, ok := st.Fields["value"]
	if !ok {
		return ResultRecord{}, fmt.Errorf("record has no value field")
	}
	outcome, err := ParseOutcome(value.GetStringValue())
	if err != nil {
		return ResultRecord{}, err
	}
	rec := ResultRecord{Candidate: candidate, Outcome: outcome, Messages: []string{}}
	for _, m := range st.Fields["messages"].GetListValue().GetValues() {
		rec.Messages = append(rec.Messages, m.GetStringValue())
	}
	return rec, nil
}
