package insights

import "errors"

var (
	// ErrNoChunks is returned when insight generation is requested for a
	// video set that has no stored chunks. It is distinct from a cache miss:
	// the caller may want to surface a retry affordance.
	ErrNoChunks = errors.New("no chunks available for insight generation")

	// ErrTopicNotFound is returned by GetTopicChunks when the topic id is
	// absent from the conversation's most recent cached insight, or when no
	// insight has been cached at all.
	ErrTopicNotFound = errors.New("topic not found in cached insight")
)
