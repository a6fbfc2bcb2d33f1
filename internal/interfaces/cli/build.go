package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/ligandnet/internal/application/perturbation"
	"github.com/turtacn/ligandnet/internal/config"
	"github.com/turtacn/ligandnet/internal/domain/network"
	"github.com/turtacn/ligandnet/internal/domain/scoring"
)

// buildOptions mirrors the build flags.  Only flags the user set are copied
// onto the loaded config.
type buildOptions struct {
	parallel        int
	cutoff          float64
	noCycleCover    bool
	cycleMode       string
	maxDegree       int
	cycleBudget     int
	hub             string
	threeD          bool
	max3D           float64
	timeBudget      time.Duration
	linksFile       string
	name            string
	outputDir       string
	yaml            bool
	loose           bool
	correspondences string
	metricsFile     string
	cache           string
}

// NewBuildCmd creates the build command.
func NewBuildCmd() *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build <dir>",
		Short: "Score every ligand pair in a directory and select the network",
		Long: "Load every molecule file under <dir>, score all pairs, and write the\n" +
			"selected network to <output-dir>/<name>" + perturbation.RecordsSuffix + ".",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd.Flags(), cliCtx.Config); err != nil {
				return err
			}
			if err := cliCtx.Config.Validate(); err != nil {
				return fmt.Errorf("%w: %v", config.ErrConfigValidation, err)
			}

			svc, err := perturbation.NewService(cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			res, err := svc.Run(cmd.Context(), perturbation.RunRequest{SourceDir: args[0]})
			if err != nil {
				return err
			}

			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
			}
			if err := PrintResult(cmd, newBuildSummary(res)); err != nil {
				return err
			}
			PrintSuccess(cmd, "network written to "+res.RecordsPath)
			return nil
		},
	}

	defaults := config.NewDefaultConfig()
	f := cmd.Flags()
	f.IntVarP(&opts.parallel, "parallel", "p", defaults.Matrix.Parallelism, "number of workers scoring pairs")
	f.Float64Var(&opts.cutoff, "cutoff", defaults.Network.Cutoff, "minimum score for a candidate edge")
	f.BoolVarP(&opts.noCycleCover, "no-cycle-cover", "T", false, "skip the cycle redundancy step")
	f.StringVar(&opts.cycleMode, "cycle-mode", defaults.Network.CycleMode, "cycle redundancy mode (cover, greedy)")
	f.IntVar(&opts.maxDegree, "max-degree", defaults.Network.MaxDegree, "greedy mode: maximum cycle edges per ligand (0 = unlimited)")
	f.IntVar(&opts.cycleBudget, "cycle-budget", defaults.Network.CycleEdgeBudget, "greedy mode: maximum cycle edges in total (0 = unlimited)")
	f.StringVar(&opts.hub, "hub", "", "ligand file name every ligand must be connected to directly")
	f.BoolVar(&opts.threeD, "threed", false, "drop mapped atoms that are too far apart in 3-D")
	f.Float64Var(&opts.max3D, "max3d", defaults.Scoring.ThreeD.MaxDistance, "3-D distance cutoff in angstrom")
	f.DurationVar(&opts.timeBudget, "time", defaults.Matcher.TimeBudget, "time budget for one structure match")
	f.StringVar(&opts.linksFile, "links-file", "", "file of forced, rescored or excluded pairs")
	f.StringVarP(&opts.name, "name", "n", defaults.Output.Name, "base name of the output files")
	f.StringVar(&opts.outputDir, "output-dir", defaults.Output.Dir, "directory for output files")
	f.BoolVar(&opts.yaml, "yaml", false, "also write the network as YAML")
	f.BoolVar(&opts.loose, "loose", false, "report loose scores instead of strict ones")
	f.StringVar(&opts.correspondences, "correspondences", "", "YAML file of precomputed atom correspondences")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	f.StringVar(&opts.cache, "cache", defaults.Cache.Backend, "pair score cache (none, memory, redis)")

	return cmd
}

// changedFlags is the part of pflag.FlagSet apply needs.
type changedFlags interface {
	Changed(name string) bool
}

// apply copies every changed flag onto cfg.
func (o *buildOptions) apply(fs changedFlags, cfg *config.Config) error {
	if fs.Changed("parallel") {
		cfg.Matrix.Parallelism = o.parallel
	}
	if fs.Changed("cutoff") {
		cfg.Network.Cutoff = o.cutoff
	}
	if fs.Changed("no-cycle-cover") {
		cfg.Network.CycleRedundancy = !o.noCycleCover
	}
	if fs.Changed("cycle-mode") {
		if _, err := network.ParseCycleMode(o.cycleMode); err != nil {
			return err
		}
		cfg.Network.CycleMode = o.cycleMode
	}
	if fs.Changed("max-degree") {
		cfg.Network.MaxDegree = o.maxDegree
	}
	if fs.Changed("cycle-budget") {
		cfg.Network.CycleEdgeBudget = o.cycleBudget
	}
	if fs.Changed("hub") {
		cfg.Network.Hub = o.hub
	}
	if fs.Changed("links-file") {
		cfg.Network.LinksFile = o.linksFile
	}
	if fs.Changed("threed") {
		cfg.Scoring.ThreeD.Enabled = o.threeD
	}
	if fs.Changed("max3d") {
		cfg.Scoring.ThreeD.MaxDistance = o.max3D
	}
	if fs.Changed("loose") {
		cfg.Scoring.Mode = scoring.ModeStrict
		if o.loose {
			cfg.Scoring.Mode = scoring.ModeLoose
		}
	}
	if fs.Changed("time") {
		cfg.Matcher.TimeBudget = o.timeBudget
	}
	if fs.Changed("correspondences") {
		cfg.Matcher.Kind = config.MatcherStatic
		cfg.Matcher.Correspondences = o.correspondences
	}
	if fs.Changed("cache") {
		cfg.Cache.Backend = o.cache
	}
	if fs.Changed("metrics-file") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.TextfilePath = o.metricsFile
	}
	if fs.Changed("name") {
		cfg.Output.Name = o.name
	}
	if fs.Changed("output-dir") {
		cfg.Output.Dir = o.outputDir
	}
	if fs.Changed("yaml") {
		cfg.Output.YAML = o.yaml
	}
	return nil
}

// buildSummary is what the build command prints: the selected edges.
type buildSummary struct {
	RunID       string        `json:"run_id"`
	Ligands     int           `json:"ligands"`
	Edges       []summaryEdge `json:"edges"`
	RecordsPath string        `json:"records_path"`
	YAMLPath    string        `json:"yaml_path,omitempty"`
	MetricsPath string        `json:"metrics_path,omitempty"`
}

type summaryEdge struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Score  float64 `json:"score"`
	Forced bool    `json:"forced,omitempty"`
	Source string  `json:"source"`
}

func newBuildSummary(res *perturbation.RunResult) *buildSummary {
	names := res.Names()
	selected := network.Selected(res.Edges)
	out := &buildSummary{
		RunID:       res.RunID,
		Ligands:     len(names),
		Edges:       make([]summaryEdge, 0, len(selected)),
		RecordsPath: res.RecordsPath,
		YAMLPath:    res.YAMLPath,
		MetricsPath: res.MetricsPath,
	}
	for _, e := range selected {
		out.Edges = append(out.Edges, summaryEdge{
			A:      names[e.I],
			B:      names[e.J],
			Score:  e.Score,
			Forced: e.Forced,
			Source: string(e.Source),
		})
	}
	return out
}

func (s *buildSummary) TableHeaders() []string {
	return []string{"LIGAND A", "LIGAND B", "SCORE", "SOURCE"}
}

func (s *buildSummary) TableRows() [][]string {
	rows := make([][]string, 0, len(s.Edges))
	for _, e := range s.Edges {
		src := e.Source
		if e.Forced {
			src += " (forced)"
		}
		rows = append(rows, []string{e.A, e.B, formatScore(e.Score), src})
	}
	return rows
}
