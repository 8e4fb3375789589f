package hnsw

// LevelStats describes one layer of the graph.
type LevelStats struct {
	Nodes       int // Number of nodes present on the layer
	Connections int // Total number of links on the layer
}

// Stats summarizes the structure of the graph.
type Stats struct {
	Nodes    int
	MaxLevel int
	EntryID  uint32
	M        int
	MMax0    int
	Levels   []LevelStats
}

// AvgConnections returns the average number of links per node on level.
func (s Stats) AvgConnections(level int) float64 {
	if level < 0 || level >= len(s.Levels) || s.Levels[level].Nodes == 0 {
		return 0
	}

	return float64(s.Levels[level].Connections) / float64(s.Levels[level].Nodes)
}

// Stats returns statistics about the HNSW graph.
func (h *HNSW) Stats() Stats {
	st := Stats{
		Nodes:    len(h.nodes),
		MaxLevel: h.maxLevel,
		EntryID:  h.ep,
		M:        h.mmax,
		MMax0:    h.mmax0,
		Levels:   make([]LevelStats, h.maxLevel+1),
	}

	for i := range h.nodes {
		for level, conns := range h.nodes[i].connections {
			st.Levels[level].Nodes++
			st.Levels[level].Connections += len(conns)
		}
	}

	return st
}
