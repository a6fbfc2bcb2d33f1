package network

import (
	"sort"

	"github.com/turtacn/ligandnet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ligandnet/pkg/errors"
)

// ScoreSource exposes the symmetric pair score used for edge selection.
type ScoreSource interface {
	At(i, j int) float64
}

// LooseSource is implemented by score sources that also carry the loose
// preset; Build copies it onto every edge.
type LooseSource interface {
	Loose(i, j int) float64
}

// DenseScores is a ScoreSource over a full square matrix.
type DenseScores [][]float64

// At returns s[i][j].
func (s DenseScores) At(i, j int) float64 { return s[i][j] }

// Source records where an edge score came from.
type Source string

const (
	SourceComputed Source = "computed"
	SourceOverride Source = "override"
)

// Edge is one unordered pair of the network, I < J.
type Edge struct {
	I, J     int
	Score    float64
	Computed float64
	Loose    float64
	Selected bool
	Forced   bool
	Source   Source
}

// Builder selects edges.  It holds no per-build state and may be shared.
type Builder struct {
	logger logging.Logger
}

// NewBuilder returns a Builder logging to logger.
func NewBuilder(logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Builder{logger: logger.Named("network")}
}

// build is the working state of one Build call.
type build struct {
	n        int
	cfg      Config
	edges    []Edge
	pos      map[[2]int]int
	include  map[int]bool
	selected []bool
}

// Build returns every pair i < j of the n nodes in pair order, each carrying
// its final score and selection flag.  The selected subgraph spans all
// nodes or a ConnectivityError is returned.
func (b *Builder) Build(m ScoreSource, n int, cfg Config, overrides []Override) ([]Edge, error) {
	if m == nil {
		return nil, errors.New(errors.ErrCodeNetworkConfig, "score source is nil")
	}
	if err := cfg.Validate(n); err != nil {
		return nil, err
	}
	if n <= 1 {
		return []Edge{}, nil
	}

	st := &build{n: n, cfg: cfg, pos: make(map[[2]int]int, n*(n-1)/2), include: make(map[int]bool)}
	loose, hasLoose := m.(LooseSource)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			e := Edge{I: i, J: j, Computed: m.At(i, j), Source: SourceComputed}
			e.Score = e.Computed
			if hasLoose {
				e.Loose = loose.Loose(i, j)
			}
			st.pos[[2]int{i, j}] = len(st.edges)
			st.edges = append(st.edges, e)
		}
	}
	st.selected = make([]bool, len(st.edges))

	// Overrides apply before construction so forced scores steer the
	// selection, and again afterwards so they win regardless of it.
	if err := st.applyOverrides(overrides); err != nil {
		return nil, err
	}

	if cfg.Hub != NoHub {
		if err := st.radial(); err != nil {
			return nil, err
		}
	} else {
		st.spanningTree()
	}

	added := 0
	if cfg.CycleRedundancy {
		switch cfg.CycleMode {
		case CycleCover:
			added = st.cycleCover()
		default:
			added = st.greedyCycles()
		}
	}

	for idx, inc := range st.include {
		st.selected[idx] = inc
	}
	selected := 0
	for idx := range st.edges {
		st.edges[idx].Selected = st.selected[idx]
		if st.selected[idx] {
			selected++
		}
	}

	if err := st.checkConnected(); err != nil {
		b.logger.Error("network is not connected", logging.Err(err), logging.Int("nodes", n))
		return nil, err
	}
	b.logger.Info("network built",
		logging.Int("nodes", n),
		logging.Int("candidates", len(st.candidates())),
		logging.Int("selected", selected),
		logging.Int("cycle_edges", added),
		logging.String("cycle_mode", string(cfg.CycleMode)),
		logging.Bool("cycle_redundancy", cfg.CycleRedundancy))
	return st.edges, nil
}

func (st *build) applyOverrides(overrides []Override) error {
	for _, ov := range overrides {
		i, j := ov.A, ov.B
		if i > j {
			i, j = j, i
		}
		if i < 0 || j >= st.n || i == j {
			return errors.Newf(errors.ErrCodeOverrideInvalid, "override pair %d-%d outside [0, %d)", ov.A, ov.B, st.n)
		}
		idx := st.pos[[2]int{i, j}]
		if ov.Score != nil {
			st.edges[idx].Score = *ov.Score
			st.edges[idx].Source = SourceOverride
		}
		if ov.Include != nil {
			st.edges[idx].Forced = true
			st.include[idx] = *ov.Include
		}
	}
	return nil
}

// candidate reports whether edge idx may be selected at all.
func (st *build) candidate(idx int) bool {
	if inc, forced := st.include[idx]; forced {
		return inc
	}
	return st.edges[idx].Score >= st.cfg.Cutoff
}

func (st *build) candidates() []int {
	var out []int
	for idx := range st.edges {
		if st.candidate(idx) {
			out = append(out, idx)
		}
	}
	return out
}

// byScore orders candidate indices by score, descending unless asc, ties by
// pair order.
func (st *build) byScore(idxs []int, asc bool) []int {
	out := append([]int(nil), idxs...)
	sort.SliceStable(out, func(x, y int) bool {
		sx, sy := st.edges[out[x]].Score, st.edges[out[y]].Score
		if asc {
			return sx < sy
		}
		return sx > sy
	})
	return out
}

func (st *build) forcedIn() []int {
	var out []int
	for idx := range st.edges {
		if st.include[idx] {
			out = append(out, idx)
		}
	}
	return out
}

// spanningTree selects a maximum spanning forest of the candidate graph,
// seeded with the force-included edges.
func (st *build) spanningTree() {
	dsu := newDisjointSet(st.n)
	for _, idx := range st.forcedIn() {
		e := st.edges[idx]
		dsu.union(e.I, e.J)
		st.selected[idx] = true
	}
	for _, idx := range st.byScore(st.candidates(), false) {
		if dsu.sets == 1 {
			return
		}
		e := st.edges[idx]
		if dsu.union(e.I, e.J) {
			st.selected[idx] = true
		}
	}
}

// radial connects every node to the hub.  A spoke that is neither above the
// cutoff nor forced makes the star impossible.
func (st *build) radial() error {
	hub := st.cfg.Hub
	for k := 0; k < st.n; k++ {
		if k == hub {
			continue
		}
		i, j := hub, k
		if i > j {
			i, j = j, i
		}
		idx := st.pos[[2]int{i, j}]
		if !st.candidate(idx) {
			return errors.Newf(errors.ErrCodeNetworkConnectivity, "hub %d cannot reach node %d: spoke score %.5f below cutoff %.5f",
				hub, k, st.edges[idx].Score, st.cfg.Cutoff)
		}
		st.selected[idx] = true
	}
	for _, idx := range st.forcedIn() {
		st.selected[idx] = true
	}
	return nil
}

// greedyCycles adds the best remaining candidates that close a cycle while
// respecting the degree limit and the edge budget.
func (st *build) greedyCycles() int {
	dsu := newDisjointSet(st.n)
	deg := make([]int, st.n)
	for idx, sel := range st.selected {
		if sel {
			e := st.edges[idx]
			dsu.union(e.I, e.J)
			deg[e.I]++
			deg[e.J]++
		}
	}
	added := 0
	for _, idx := range st.byScore(st.candidates(), false) {
		if st.selected[idx] {
			continue
		}
		if st.cfg.CycleEdgeBudget > 0 && added >= st.cfg.CycleEdgeBudget {
			break
		}
		e := st.edges[idx]
		if dsu.find(e.I) != dsu.find(e.J) {
			continue
		}
		if st.cfg.MaxDegree > 0 && (deg[e.I] >= st.cfg.MaxDegree || deg[e.J] >= st.cfg.MaxDegree) {
			continue
		}
		st.selected[idx] = true
		deg[e.I]++
		deg[e.J]++
		added++
	}
	return added
}

// cycleCover starts from every candidate and removes edges weakest first
// unless that splits a component or takes a node off its last cycle.
// Forced edges and hub spokes are never removed.  It returns the number of
// selected edges beyond the backbone.
//
// Each removal re-runs a bridge search over the component holding the
// removed edge, so a connected candidate graph of n nodes and E edges costs
// O(E·(n+E)).  That stays in the seconds for a couple of hundred ligands;
// larger series should use CycleGreedy with a budget.
func (st *build) cycleCover() int {
	backbone := 0
	fixed := make(map[int]bool)
	for idx, sel := range st.selected {
		if sel {
			backbone++
			if st.cfg.Hub != NoHub || st.include[idx] {
				fixed[idx] = true
			}
		}
	}
	cands := st.candidates()
	for _, idx := range cands {
		st.selected[idx] = true
	}
	adj := st.adjacency()
	onCycle := st.nodesOnCycle()

	for _, idx := range st.byScore(cands, true) {
		if fixed[idx] {
			continue
		}
		st.selected[idx] = false
		e := st.edges[idx]
		reached, on := st.cycleNodes(adj, []int{e.I})
		if !reached[e.J] || !covers(reached, on, onCycle) {
			st.selected[idx] = true
		}
	}

	total := 0
	for _, sel := range st.selected {
		if sel {
			total++
		}
	}
	return total - backbone
}

// covers reports whether every reached node that should lie on a cycle
// still does.
func covers(reached, have, want []bool) bool {
	for v, w := range want {
		if w && reached[v] && !have[v] {
			return false
		}
	}
	return true
}

type arc struct{ to, edge int }

// adjacency lists every selected edge at both ends.  Walkers skip arcs whose
// edge has since been deselected.
func (st *build) adjacency() [][]arc {
	adj := make([][]arc, st.n)
	for idx, sel := range st.selected {
		if sel {
			e := st.edges[idx]
			adj[e.I] = append(adj[e.I], arc{e.J, idx})
			adj[e.J] = append(adj[e.J], arc{e.I, idx})
		}
	}
	return adj
}

// nodesOnCycle marks nodes with at least one incident selected edge that is
// not a bridge.
func (st *build) nodesOnCycle() []bool {
	roots := make([]int, st.n)
	for v := range roots {
		roots[v] = v
	}
	_, on := st.cycleNodes(st.adjacency(), roots)
	return on
}

// cycleNodes runs a bridge search over the selected edges reachable from
// roots.  It returns the nodes reached and, among them, those with an
// incident selected edge that is not a bridge.
func (st *build) cycleNodes(adj [][]arc, roots []int) (reached, on []bool) {
	disc := make([]int, st.n)
	low := make([]int, st.n)
	on = make([]bool, st.n)
	timer := 0
	var dfs func(v, parentEdge int)
	dfs = func(v, parentEdge int) {
		timer++
		disc[v], low[v] = timer, timer
		for _, a := range adj[v] {
			if a.edge == parentEdge || !st.selected[a.edge] {
				continue
			}
			if disc[a.to] == 0 {
				dfs(a.to, a.edge)
				low[v] = min(low[v], low[a.to])
				if low[a.to] <= disc[v] {
					on[v], on[a.to] = true, true
				}
			} else {
				low[v] = min(low[v], disc[a.to])
				on[v], on[a.to] = true, true
			}
		}
	}
	for _, r := range roots {
		if disc[r] == 0 {
			dfs(r, -1)
		}
	}

	reached = make([]bool, st.n)
	for v, d := range disc {
		reached[v] = d > 0
	}
	return reached, on
}

func (st *build) checkConnected() error {
	dsu := newDisjointSet(st.n)
	for idx, sel := range st.selected {
		if sel {
			dsu.union(st.edges[idx].I, st.edges[idx].J)
		}
	}
	if dsu.sets == 1 {
		return nil
	}
	var isolated []int
	root := dsu.find(0)
	for v := 1; v < st.n; v++ {
		if dsu.find(v) != root {
			isolated = append(isolated, v)
		}
	}
	return errors.Newf(errors.ErrCodeNetworkConnectivity, "selected edges form %d components", dsu.sets).
		WithDetail(formatNodes(isolated))
}
