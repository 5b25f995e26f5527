package types

import (
	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jmakaron/dbcursor/internal/pkg/cursor"
)

var queryTopic = "queryLogTopic"

// QueryEvent is a query log entry published to Kafka. The value is a
// protobuf encoded google.protobuf.Struct.
type QueryEvent struct {
	topic  *string
	ID     string
	Vendor string
	Seq    int
	cursor.QueryLogEntry
}

func (e *QueryEvent) Topic() *string {
	return e.topic
}

func (e *QueryEvent) Key() []byte {
	return []byte(e.ID)
}

func (e *QueryEvent) Value() []byte {
	s, err := e.Struct()
	if err != nil {
		return nil
	}
	b, _ := proto.Marshal(s)
	return b
}

func (e *QueryEvent) Struct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":     e.ID,
		"vendor": e.Vendor,
		"seq":    e.Seq,
		"sql":    e.SQL,
		"time":   e.Time,
	})
}

func NewQueryEvent(vendor string, seq int, entry cursor.QueryLogEntry) *QueryEvent {
	topic := queryTopic
	return &QueryEvent{topic: &topic, ID: uuid.NewString(), Vendor: vendor, Seq: seq, QueryLogEntry: entry}
}

// ParseQueryEvent decodes a value produced by QueryEvent.Value.
func ParseQueryEvent(b []byte) (*QueryEvent, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	f := s.GetFields()
	topic := queryTopic
	return &QueryEvent{
		topic:  &topic,
		ID:     f["id"].GetStringValue(),
		Vendor: f["vendor"].GetStringValue(),
		Seq:    int(f["seq"].GetNumberValue()),
		QueryLogEntry: cursor.QueryLogEntry{
			SQL:  f["sql"].GetStringValue(),
			Time: f["time"].GetStringValue(),
		},
	}, nil
}
