// Package graph implements the C1 Skim oracle over a static road graph
// using gonum's weighted-graph and shortest-path packages.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/ridesim/dispatch/internal/core/domain"
	"github.com/ridesim/dispatch/internal/core/ports"
	"github.com/ridesim/dispatch/internal/core/simerr"
)

type edgeJSON struct {
	From   int64   `json:"from"`
	To     int64   `json:"to"`
	Weight float64 `json:"weight"`
}

type cityGraphJSON struct {
	Nodes []int64    `json:"nodes"`
	Edges []edgeJSON `json:"edges"`
}

// Skim answers C1 distance/path queries over a gonum
// simple.WeightedUndirectedGraph, memoizing one Dijkstra tree per source
// node and optionally reading/writing through an external cache keyed by
// node pair.
type Skim struct {
	g     *simple.WeightedUndirectedGraph
	cache ports.CacheService
	ttl   int

	mu    sync.Mutex
	trees map[int64]path.Shortest
}

// NewSkim wraps an already-built graph. Dijkstra trees are memoized per
// source node either way; cache may be nil, in which case pairwise
// distances are simply not stored in it.
func NewSkim(g *simple.WeightedUndirectedGraph, cache ports.CacheService, cacheTTLSeconds int) *Skim {
	return &Skim{g: g, cache: cache, ttl: cacheTTLSeconds, trees: make(map[int64]path.Shortest)}
}

// Load parses the city_config graph file (spec.md §6) into a Skim.
func Load(filePath string, cache ports.CacheService, cacheTTLSeconds int) (*Skim, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read city graph %s: %v", simerr.ErrConfigInvalid, filePath, err)
	}
	var parsed cityGraphJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse city graph: %v", simerr.ErrConfigInvalid, err)
	}

	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for _, id := range parsed.Nodes {
		g.AddNode(simple.Node(id))
	}
	for _, e := range parsed.Edges {
		if !g.Has(e.From) {
			g.AddNode(simple.Node(e.From))
		}
		if !g.Has(e.To) {
			g.AddNode(simple.Node(e.To))
		}
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(e.From), T: simple.Node(e.To), W: e.Weight})
	}

	return NewSkim(g, cache, cacheTTLSeconds), nil
}

func (s *Skim) shortestFrom(from domain.NodeID) (path.Shortest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tree, ok := s.trees[int64(from)]; ok {
		return tree, nil
	}
	node := s.g.Node(int64(from))
	if node == nil {
		return path.Shortest{}, fmt.Errorf("%w: unknown node %d", simerr.ErrUnknownNode, from)
	}
	tree := path.DijkstraFrom(node, s.g)
	s.trees[int64(from)] = tree
	return tree, nil
}

func cacheKey(kind string, from, to domain.NodeID) string {
	return fmt.Sprintf("skim:%s:%d:%d", kind, from, to)
}

// Distance implements ports.Skim.Distance: the sum of shortest-path
// distances between every consecutive pair in nodes.
func (s *Skim) Distance(ctx context.Context, nodes []domain.NodeID) (float64, error) {
	if len(nodes) == 0 {
		return 0, fmt.Errorf("%w: empty node sequence", simerr.ErrInvariantViolation)
	}
	if len(nodes) == 1 {
		return 0, nil
	}

	var total float64
	for i := 0; i < len(nodes)-1; i++ {
		from, to := nodes[i], nodes[i+1]
		if from == to {
			continue
		}

		key := cacheKey("d", from, to)
		if s.cache != nil {
			if raw, err := s.cache.Get(ctx, key); err == nil && raw != nil {
				if d, err := strconv.ParseFloat(string(raw), 64); err == nil {
					total += d
					continue
				}
			}
		}

		tree, err := s.shortestFrom(from)
		if err != nil {
			return 0, err
		}
		toNode := s.g.Node(int64(to))
		if toNode == nil {
			return 0, fmt.Errorf("%w: unknown node %d", simerr.ErrUnknownNode, to)
		}
		d := tree.WeightTo(toNode.ID())
		if math.IsInf(d, 1) {
			return 0, fmt.Errorf("%w: no path from %d to %d", simerr.ErrUnsupportedSkim, from, to)
		}
		total += d

		if s.cache != nil {
			_ = s.cache.Set(ctx, key, []byte(strconv.FormatFloat(d, 'f', -1, 64)), s.ttl)
		}
	}
	return total, nil
}

// Path implements ports.Skim.Path: the expanded node-by-node route joining
// every consecutive pair in nodes, with junction nodes de-duplicated.
func (s *Skim) Path(ctx context.Context, nodes []domain.NodeID) ([]domain.NodeID, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: empty node sequence", simerr.ErrInvariantViolation)
	}
	if len(nodes) == 1 {
		return []domain.NodeID{nodes[0]}, nil
	}

	full := []domain.NodeID{nodes[0]}
	for i := 0; i < len(nodes)-1; i++ {
		from, to := nodes[i], nodes[i+1]
		if from == to {
			continue
		}

		tree, err := s.shortestFrom(from)
		if err != nil {
			return nil, err
		}
		toNode := s.g.Node(int64(to))
		if toNode == nil {
			return nil, fmt.Errorf("%w: unknown node %d", simerr.ErrUnknownNode, to)
		}
		segment, _ := tree.To(toNode.ID())
		if len(segment) == 0 {
			return nil, fmt.Errorf("%w: no path from %d to %d", simerr.ErrUnsupportedSkim, from, to)
		}
		for _, n := range segment[1:] {
			full = append(full, domain.NodeID(n.ID()))
		}
	}
	return full, nil
}
