package dataset

import "github.com/cloudwego/eino/schema"

// SystemPrompt opens every formatted conversation.
const SystemPrompt = "You are helpful"

// FormatDatasetForConversationalAI maps each record to a system, user,
// assistant conversation, preserving order.
func FormatDatasetForConversationalAI(records RecordSet) []Conversation {
	out := make([]Conversation, len(records))
	for i, r := range records {
		out[i] = Conversation{Messages: []Message{
			{Role: schema.System, Content: SystemPrompt},
			{Role: schema.User, Content: r.Question},
			{Role: schema.Assistant, Content: r.Answer},
		}}
	}
	return out
}

// FormatPartitions formats each partition.
func FormatPartitions(p Partitions) FormattedPartitions {
	return FormattedPartitions{
		Train:      FormatDatasetForConversationalAI(p.Train),
		Validation: FormatDatasetForConversationalAI(p.Validation),
		Test:       FormatDatasetForConversationalAI(p.Test),
	}
}
