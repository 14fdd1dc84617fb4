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

package toc

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/kadirpekel/agent-memory/internal/summarizer"
	"github.com/kadirpekel/agent-memory/internal/types"
)

// RollupResult is one period's outcome from RollupDuePeriods.
type RollupResult struct {
	Level    types.TocLevel
	PeriodID string
	Node     *types.TocNode
	Err      error
}

// RollupDuePeriods rolls up each periodID independently, logging and moving
// on when one fails rather than aborting the batch (spec.md §4.3's failure
// model: "affected periods are reported in the rollup job result").
func (b *Builder) RollupDuePeriods(ctx context.Context, level types.TocLevel, periodIDs []string) []RollupResult {
	results := make([]RollupResult, 0, len(periodIDs))
	for _, p := range periodIDs {
		node, err := b.RollupPeriod(ctx, level, p)
		if err != nil {
			slog.Error("rollup failed, moving to next period", "level", level, "period", p, "error", err)
		}
		results = append(results, RollupResult{Level: level, PeriodID: p, Node: node, Err: err})
	}
	return results
}

// RollupPeriod reads level's child nodes for periodID, summarizes their
// concatenation, and writes a new versioned node. Rerunning on the same
// period is idempotent in its effect on toc_latest_by_period: it overwrites
// which version is "latest" but never deletes earlier versions (spec.md
// §4.3).
func (b *Builder) RollupPeriod(ctx context.Context, level types.TocLevel, periodID string) (*types.TocNode, error) {
	if level.Child() == "" {
		return nil, types.NewError("toc", "rollup", "level has no children to roll up: "+string(level), types.CodeInvalidArgument, nil)
	}

	children, err := b.allChildren(ctx, types.PeriodNodeID(level, periodID))
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, types.NewError("toc", "rollup", "no child nodes for period: "+periodID, types.CodeNotFound, nil)
	}
	sort.SliceStable(children, func(i, j int) bool { return children[i].TimeRange.StartMs < children[j].TimeRange.StartMs })

	version := 1
	if latest, err := b.Store.GetLatestTocNodeForPeriod(ctx, level, periodID); err == nil {
		version = latest.Version + 1
	} else if types.CodeOf(err) != types.CodeNotFound {
		return nil, err
	}

	passages := make([]string, len(children))
	for i, c := range children {
		passages[i] = c.Title + ": " + c.Summary + "\n" + bulletLines(c.Bullets)
	}
	result, err := b.summarizeWithRetry(ctx, summarizer.Input{Passages: passages, LevelName: string(level)})
	if err != nil {
		return nil, err
	}

	promoted := promoteGrips(children)
	bullets := make([]types.TocBullet, len(result.Bullets))
	for i, text := range result.Bullets {
		tb := types.TocBullet{Text: text}
		if i < len(promoted) {
			tb.GripIDs = []string{promoted[i]}
		}
		bullets[i] = tb
	}

	startMs, endMs := children[0].TimeRange.StartMs, children[0].TimeRange.EndMs
	var agents []string
	var pinned bool
	var firstEventID, lastEventID string
	for _, c := range children {
		agents = append(agents, c.ContributingAgents...)
		if c.IsPinned {
			pinned = true
		}
		if c.TimeRange.StartMs < startMs {
			startMs = c.TimeRange.StartMs
		}
		if c.TimeRange.EndMs > endMs {
			endMs = c.TimeRange.EndMs
		}
		if c.EventRange != nil {
			if firstEventID == "" {
				firstEventID = c.EventRange.FirstEventID
			}
			lastEventID = c.EventRange.LastEventID
		}
	}

	memoryKind := InferMemoryKind(result.Summary)
	salience := Salience(len(result.Summary), memoryKind, pinned)

	node := &types.TocNode{
		NodeID:             types.VersionedNodeID(level, periodID, version),
		Level:              level,
		TimeRange:          types.TimeRange{StartMs: startMs, EndMs: endMs},
		Title:              result.Title,
		Summary:            result.Summary,
		Bullets:            bullets,
		ContributingAgents: agents,
		SalienceScore:      salience,
		MemoryKind:         memoryKind,
		IsPinned:           pinned,
		Version:            version,
	}
	if firstEventID != "" {
		node.EventRange = &types.EventRange{FirstEventID: firstEventID, LastEventID: lastEventID}
	}
	if parentLevel := level.Parent(); parentLevel != "" {
		node.ParentID = types.PeriodNodeID(parentLevel, PeriodFor(parentLevel, startMs, b.Config.Location))
	}

	if err := b.Store.PutTocNode(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

func (b *Builder) allChildren(ctx context.Context, parentID string) ([]*types.TocNode, error) {
	var out []*types.TocNode
	token := ""
	for {
		page, next, err := b.Store.BrowseChildren(ctx, parentID, token, 200)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if next == "" {
			break
		}
		token = next
	}
	return out, nil
}

func bulletLines(bullets []types.TocBullet) string {
	lines := make([]string, len(bullets))
	for i, b := range bullets {
		lines[i] = b.Text
	}
	return strings.Join(lines, "\n")
}

// promoteGrips picks, per child node ordered by salience_score descending
// (ties: more recent timestamp, then lexical node-id), the first grip of that
// child's first bullet — the deterministic top-1-per-child selection
// recorded as the grip-promotion decision.
func promoteGrips(children []*types.TocNode) []string {
	ranked := append([]*types.TocNode(nil), children...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.SalienceScore != b.SalienceScore {
			return a.SalienceScore > b.SalienceScore
		}
		if a.TimeRange.StartMs != b.TimeRange.StartMs {
			return a.TimeRange.StartMs > b.TimeRange.StartMs
		}
		return a.NodeID < b.NodeID
	})
	out := make([]string, 0, len(ranked))
	for _, c := range ranked {
		if len(c.Bullets) == 0 || len(c.Bullets[0].GripIDs) == 0 {
			continue
		}
		out = append(out, c.Bullets[0].GripIDs[0])
	}
	return out
}
