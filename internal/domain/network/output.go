package network

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RecordHeader is the first line written by WriteRecords.
const RecordHeader = "#Index_1, Index_2, Filename_1, Filename_2, Str_sim, Eff_sim, Loose_sim, Connect, Source"

// WriteRecords writes one line per edge in the order given.  Str_sim is the
// final score, Eff_sim the computed one before overrides.
func WriteRecords(w io.Writer, edges []Edge, names []string) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, RecordHeader); err != nil {
		return err
	}
	for _, e := range edges {
		connect := "No"
		if e.Selected {
			connect = "Yes"
		}
		if _, err := fmt.Fprintf(bw, "%d, %d, %s, %s, %.5f, %.5f, %.5f, %s, %s\n",
			e.I, e.J, nodeName(names, e.I), nodeName(names, e.J),
			e.Score, e.Computed, e.Loose, connect, e.Source); err != nil {
			return err
		}
	}
	return bw.Flush()
}

type yamlNode struct {
	Index int    `yaml:"index"`
	Name  string `yaml:"name"`
}

type yamlEdge struct {
	A        string  `yaml:"a"`
	B        string  `yaml:"b"`
	Score    float64 `yaml:"score"`
	Computed float64 `yaml:"computed"`
	Loose    float64 `yaml:"loose"`
	Forced   bool    `yaml:"forced,omitempty"`
	Source   Source  `yaml:"source"`
}

type yamlNetwork struct {
	Nodes      []yamlNode `yaml:"nodes"`
	Edges      []yamlEdge `yaml:"edges"`
	Considered int        `yaml:"considered"`
}

// WriteYAML writes the nodes and the selected edges.
func WriteYAML(w io.Writer, edges []Edge, names []string) error {
	doc := yamlNetwork{Nodes: make([]yamlNode, len(names)), Considered: len(edges)}
	for i, n := range names {
		doc.Nodes[i] = yamlNode{Index: i, Name: n}
	}
	for _, e := range edges {
		if !e.Selected {
			continue
		}
		doc.Edges = append(doc.Edges, yamlEdge{
			A: nodeName(names, e.I), B: nodeName(names, e.J),
			Score: e.Score, Computed: e.Computed, Loose: e.Loose,
			Forced: e.Forced, Source: e.Source,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// Selected filters the selected edges.
func Selected(edges []Edge) []Edge {
	var out []Edge
	for _, e := range edges {
		if e.Selected {
			out = append(out, e)
		}
	}
	return out
}

func nodeName(names []string, i int) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return strconv.Itoa(i)
}

func formatNodes(nodes []int) string {
	parts := make([]string, len(nodes))
	for i, v := range nodes {
		parts[i] = strconv.Itoa(v)
	}
	return "unreachable from node 0: " + strings.Join(parts, ",")
}
