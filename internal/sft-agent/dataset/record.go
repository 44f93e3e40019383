package dataset

import (
	"errors"

	"github.com/cloudwego/eino/schema"
)

var (
	// ErrMalformedInput is returned when a source file cannot be parsed or
	// lacks the expected fields.
	ErrMalformedInput = errors.New("malformed dataset input")

	// ErrDatasetTooSmall is returned when a split would leave the training
	// partition empty.
	ErrDatasetTooSmall = errors.New("dataset too small to split")
)

// Record is a single question/answer pair. Both fields are non-empty.
type Record struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// RecordSet is an ordered collection of records.
type RecordSet []Record

// Partitions are the three disjoint subsets produced by a split.
type Partitions struct {
	Train      RecordSet
	Validation RecordSet
	Test       RecordSet
}

// Slice returns the partitions as [train, validation, test].
func (p Partitions) Slice() []RecordSet {
	return []RecordSet{p.Train, p.Validation, p.Test}
}

// Len is the total number of records across partitions.
func (p Partitions) Len() int {
	return len(p.Train) + len(p.Validation) + len(p.Test)
}

// Message is one chat turn.
type Message struct {
	Role    schema.RoleType `json:"role"`
	Content string          `json:"content"`
}

// Conversation is a record in chat form: system, user, assistant.
type Conversation struct {
	Messages []Message `json:"messages"`
}

// Prompt returns every turn before the final assistant answer.
func (c Conversation) Prompt() []Message {
	if n := len(c.Messages); n > 0 && c.Messages[n-1].Role == schema.Assistant {
		return c.Messages[:n-1]
	}
	return c.Messages
}

// Reference returns the final assistant answer, or "" if there is none.
func (c Conversation) Reference() string {
	if n := len(c.Messages); n > 0 && c.Messages[n-1].Role == schema.Assistant {
		return c.Messages[n-1].Content
	}
	return ""
}

// SchemaMessages converts turns to eino chat messages.
func SchemaMessages(messages []Message) []*schema.Message {
	out := make([]*schema.Message, len(messages))
	for i, m := range messages {
		out[i] = &schema.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// FormattedPartitions holds the three partitions in chat form.
type FormattedPartitions struct {
	Train      []Conversation
	Validation []Conversation
	Test       []Conversation
}

// PartitionFiles are the JSONL files of a stored FormattedPartitions.
type PartitionFiles struct {
	Train      string
	Validation string
	Test       string
}
