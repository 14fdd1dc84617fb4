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
	"fmt"
	"time"

	"github.com/kadirpekel/agent-memory/internal/keyword"
	"github.com/kadirpekel/agent-memory/internal/types"
	"github.com/kadirpekel/agent-memory/internal/vector"
)

var levelOrdinal = map[types.TocLevel]int{
	types.LevelSegment: 0,
	types.LevelDay:     1,
	types.LevelWeek:    2,
	types.LevelMonth:   3,
	types.LevelYear:    4,
}

// RebuildIndex re-derives a retrieval layer's content from the Store,
// bypassing the outbox (spec.md §4.9's administrative rebuild, for recovery
// after an index is dropped or corrupted). kind is "keyword", "vector", or
// "all"; minLevel restricts the rebuild to nodes at or above that level.
func (s *Service) RebuildIndex(ctx context.Context, kind string, minLevel types.TocLevel) error {
	doKeyword := kind == "keyword" || kind == "all"
	doVector := kind == "vector" || kind == "all"
	if !doKeyword && !doVector {
		return fmt.Errorf("service: unknown index kind %q", kind)
	}
	minOrd := levelOrdinal[minLevel]

	var vecDocs []vector.Doc
	err := s.walkAllNodes(ctx, func(n *types.TocNode) error {
		if levelOrdinal[n.Level] < minOrd {
			return nil
		}
		text := tocNodeText(n)
		if doKeyword {
			if err := s.Keyword.Upsert(ctx, keyword.Doc{
				DocID: n.NodeID, DocType: keyword.DocTocNode, Text: text,
				Agent: firstAgent(n.ContributingAgents), TimestampMs: n.TimeRange.StartMs, Level: n.Level,
			}); err != nil {
				return err
			}
		}
		if doVector {
			emb, err := s.Embedder.Embed(ctx, text)
			if err != nil {
				return err
			}
			vecDocs = append(vecDocs, vector.Doc{
				DocID: n.NodeID, DocType: vector.DocTocNode, Embedding: emb, TextPreview: truncate(text, 280),
				Agent: firstAgent(n.ContributingAgents), TimestampMs: n.TimeRange.StartMs, Level: n.Level,
			})
		}

		for _, b := range n.Bullets {
			for _, gid := range b.GripIDs {
				g, err := s.Store.GetGrip(ctx, gid)
				if err != nil {
					continue
				}
				if doKeyword {
					if err := s.Keyword.Upsert(ctx, keyword.Doc{
						DocID: g.GripID, DocType: keyword.DocGrip, Text: g.Excerpt,
						Agent: g.Agent, TimestampMs: g.TimestampMs, Level: types.LevelSegment,
					}); err != nil {
						return err
					}
				}
				if doVector {
					emb, err := s.Embedder.Embed(ctx, g.Excerpt)
					if err != nil {
						return err
					}
					vecDocs = append(vecDocs, vector.Doc{
						DocID: g.GripID, DocType: vector.DocGrip, Embedding: emb, TextPreview: truncate(g.Excerpt, 280),
						Agent: g.Agent, TimestampMs: g.TimestampMs, Level: types.LevelSegment,
					})
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if doVector {
		return s.Vector.Rebuild(ctx, vecDocs)
	}
	return nil
}

// walkAllNodes visits every TOC node reachable from the roots, depth first.
func (s *Service) walkAllNodes(ctx context.Context, fn func(*types.TocNode) error) error {
	roots, _, err := s.Store.BrowseChildren(ctx, "", "", 10_000)
	if err != nil {
		return err
	}
	for _, n := range roots {
		if err := s.walkSubtree(ctx, n, fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) walkSubtree(ctx context.Context, n *types.TocNode, fn func(*types.TocNode) error) error {
	if err := fn(n); err != nil {
		return err
	}
	if n.Level == types.LevelSegment {
		return nil
	}
	children, _, err := s.Store.BrowseChildren(ctx, n.NodeID, "", 10_000)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := s.walkSubtree(ctx, c, fn); err != nil {
			return err
		}
	}
	return nil
}

// PruneOptions narrows a manual prune invocation; a zero value prunes every
// eligible level with the configured retention windows.
type PruneOptions struct {
	NowMs int64
}

// PruneVectorIndex manually runs the vector layer's prune pass outside its
// scheduled cadence.
func (s *Service) PruneVectorIndex(ctx context.Context, opts PruneOptions) (int, error) {
	now := opts.NowMs
	if now == 0 {
		now = time.Now().UnixMilli()
	}
	return s.Vector.Prune(ctx, now, s.retentionByLevel())
}

// PruneBm25Index manually runs the keyword layer's prune pass.
func (s *Service) PruneBm25Index(ctx context.Context, opts PruneOptions) (int, error) {
	now := opts.NowMs
	if now == 0 {
		now = time.Now().UnixMilli()
	}
	return s.Keyword.Prune(ctx, now, s.retentionByLevel())
}

// Compact runs the Store's underlying storage-engine compaction, optionally
// scoped to specific column families/tables.
func (s *Service) Compact(ctx context.Context, cf []string) error {
	return s.Store.Compact(ctx, cf)
}

// PauseJob suspends a scheduled job; its next tick is skipped until resumed.
func (s *Service) PauseJob(name string) error {
	return s.Scheduler.PauseJob(name)
}

// ResumeJob re-enables a paused scheduled job.
func (s *Service) ResumeJob(name string) error {
	return s.Scheduler.ResumeJob(name)
}
