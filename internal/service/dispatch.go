// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package service

import (
	"context"

	"github.com/kadirpekel/agent-memory/internal/keyword"
	"github.com/kadirpekel/agent-memory/internal/types"
	"github.com/kadirpekel/agent-memory/internal/vector"
)

// dispatchKeyword is the keyword layer's outbox.Dispatch: it turns a
// toc_node_created/grip_created entry into an upsert against the store's
// current content for that id, and a pruned entry into a delete. Idempotent,
// since both Upsert and Delete are keyed on the doc id.
func (s *Service) dispatchKeyword(ctx context.Context, entry types.OutboxEntry) error {
	switch entry.Kind {
	case types.OutboxTocNodeCreated:
		n, err := s.Store.GetTocNode(ctx, entry.Payload.NodeID)
		if err != nil {
			return err
		}
		return s.Keyword.Upsert(ctx, keyword.Doc{
			DocID: n.NodeID, DocType: keyword.DocTocNode, Text: tocNodeText(n),
			Agent: firstAgent(n.ContributingAgents), TimestampMs: n.TimeRange.StartMs, Level: n.Level,
		})
	case types.OutboxGripCreated:
		g, err := s.Store.GetGrip(ctx, entry.Payload.GripID)
		if err != nil {
			return err
		}
		return s.Keyword.Upsert(ctx, keyword.Doc{
			DocID: g.GripID, DocType: keyword.DocGrip, Text: g.Excerpt,
			Agent: g.Agent, TimestampMs: g.TimestampMs, Level: types.LevelSegment,
		})
	case types.OutboxTocNodePruned:
		return s.Keyword.Delete(ctx, entry.Payload.NodeID)
	case types.OutboxGripPruned:
		return s.Keyword.Delete(ctx, entry.Payload.GripID)
	default:
		return nil
	}
}

// dispatchVector mirrors dispatchKeyword for the vector layer, embedding the
// node/grip text before upserting.
func (s *Service) dispatchVector(ctx context.Context, entry types.OutboxEntry) error {
	switch entry.Kind {
	case types.OutboxTocNodeCreated:
		n, err := s.Store.GetTocNode(ctx, entry.Payload.NodeID)
		if err != nil {
			return err
		}
		text := tocNodeText(n)
		emb, err := s.Embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		return s.Vector.Upsert(ctx, vector.Doc{
			DocID: n.NodeID, DocType: vector.DocTocNode, Embedding: emb, TextPreview: truncate(text, 280),
			Agent: firstAgent(n.ContributingAgents), TimestampMs: n.TimeRange.StartMs, Level: n.Level,
		})
	case types.OutboxGripCreated:
		g, err := s.Store.GetGrip(ctx, entry.Payload.GripID)
		if err != nil {
			return err
		}
		emb, err := s.Embedder.Embed(ctx, g.Excerpt)
		if err != nil {
			return err
		}
		return s.Vector.Upsert(ctx, vector.Doc{
			DocID: g.GripID, DocType: vector.DocGrip, Embedding: emb, TextPreview: truncate(g.Excerpt, 280),
			Agent: g.Agent, TimestampMs: g.TimestampMs, Level: types.LevelSegment,
		})
	case types.OutboxTocNodePruned:
		return s.Vector.Delete(ctx, entry.Payload.NodeID)
	case types.OutboxGripPruned:
		return s.Vector.Delete(ctx, entry.Payload.GripID)
	default:
		return nil
	}
}

func tocNodeText(n *types.TocNode) string {
	text := n.Title + "\n" + n.Summary
	for _, b := range n.Bullets {
		text += "\n" + b.Text
	}
	return text
}

func firstAgent(agents []string) string {
	if len(agents) == 0 {
		return ""
	}
	return agents[0]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
