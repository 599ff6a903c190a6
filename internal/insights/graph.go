package insights

import (
	"sort"
	"strings"
)

// TopicNode is one topic in the graph.
type TopicNode struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	ChunkCount  int    `json:"chunk_count"`
}

// TopicEdge relates two topics.
type TopicEdge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation,omitempty"`
}

// TopicGraph is the node/edge structure persisted as an insight's graph_data.
type TopicGraph struct {
	RootLabel string      `json:"root_label"`
	Nodes     []TopicNode `json:"nodes"`
	Edges     []TopicEdge `json:"edges"`
}

// topic accumulates one merged topic across extraction batches.
type topic struct {
	id          string
	label       string
	description string
	chunkIDs    []string
	batches     map[int]struct{}
}

// graphBuilder merges per-batch topic extractions into one graph. Topics with
// the same slug merge their chunk lists; edges connect topics that were
// extracted from the same batch.
type graphBuilder struct {
	topics map[string]*topic
	order  []string
}

func newGraphBuilder() *graphBuilder {
	return &graphBuilder{topics: make(map[string]*topic)}
}

func (b *graphBuilder) add(batch int, label, description string, chunkIDs []string) {
	id := slugify(label)
	if id == "" || len(chunkIDs) == 0 {
		return
	}

	existing, ok := b.topics[id]
	if !ok {
		existing = &topic{
			id:          id,
			label:       strings.TrimSpace(label),
			description: strings.TrimSpace(description),
			batches:     make(map[int]struct{}),
		}
		b.topics[id] = existing
		b.order = append(b.order, id)
	}
	if existing.description == "" {
		existing.description = strings.TrimSpace(description)
	}
	existing.batches[batch] = struct{}{}

	seen := make(map[string]struct{}, len(existing.chunkIDs))
	for _, chunkID := range existing.chunkIDs {
		seen[chunkID] = struct{}{}
	}
	for _, chunkID := range chunkIDs {
		if _, dup := seen[chunkID]; dup {
			continue
		}
		seen[chunkID] = struct{}{}
		existing.chunkIDs = append(existing.chunkIDs, chunkID)
	}
}

// build produces the final graph and the topic-id -> chunk-id mapping,
// keeping at most maxTopics topics ranked by chunk count. The mapping's keys
// are always exactly the graph's node ids.
func (b *graphBuilder) build(rootLabel string, maxTopics int) (TopicGraph, map[string][]string) {
	kept := make([]string, len(b.order))
	copy(kept, b.order)
	sort.SliceStable(kept, func(i, j int) bool {
		return len(b.topics[kept[i]].chunkIDs) > len(b.topics[kept[j]].chunkIDs)
	})
	if maxTopics > 0 && len(kept) > maxTopics {
		kept = kept[:maxTopics]
	}

	graph := TopicGraph{RootLabel: rootLabel}
	topicChunks := make(map[string][]string, len(kept))
	for _, id := range kept {
		t := b.topics[id]
		graph.Nodes = append(graph.Nodes, TopicNode{
			ID:          t.id,
			Label:       t.label,
			Description: t.description,
			ChunkCount:  len(t.chunkIDs),
		})
		topicChunks[id] = t.chunkIDs
	}

	edgeSeen := make(map[string]struct{})
	for i, source := range kept {
		for _, target := range kept[i+1:] {
			if !sharesBatch(b.topics[source], b.topics[target]) {
				continue
			}
			key := source + "\x00" + target
			if _, dup := edgeSeen[key]; dup {
				continue
			}
			edgeSeen[key] = struct{}{}
			graph.Edges = append(graph.Edges, TopicEdge{
				Source:   source,
				Target:   target,
				Relation: "related",
			})
		}
	}

	return graph, topicChunks
}

func sharesBatch(a, b *topic) bool {
	for batch := range a.batches {
		if _, ok := b.batches[batch]; ok {
			return true
		}
	}
	return false
}

// slugify derives a stable topic id from its label: lowercase, alphanumeric
// runs joined by hyphens.
func slugify(label string) string {
	var builder strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				builder.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(builder.String(), "-")
}
