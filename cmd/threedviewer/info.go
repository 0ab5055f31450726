package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/taigrr/threedviewer/pkg/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(16)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB454"))
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <model>",
		Short: "Load a model and show its statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViewer()
			if err != nil {
				return err
			}
			defer v.Close()

			snap, err := loadAndWait(cmd.Context(), v, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderInfo(snap))
			return nil
		},
	}
}

func renderInfo(snap pipeline.Snapshot) string {
	n := snap.Result
	var b strings.Builder
	row := func(label, format string, a ...any) {
		b.WriteString(labelStyle.Render(label))
		fmt.Fprintf(&b, format, a...)
		b.WriteByte('\n')
	}

	b.WriteString(titleStyle.Render(n.Name))
	b.WriteByte('\n')
	row("Format", "%s", snap.Format)
	row("Size", "%d bytes", snap.ProgressBytes)
	row("Nodes", "%d", n.Stats.Nodes)
	row("Meshes", "%d", n.Stats.Meshes)
	row("Vertices", "%d", n.Stats.Vertices)
	row("Triangles", "%d", n.Stats.Triangles)
	row("Materials", "%d", n.Stats.Materials)
	size := n.Bounds.Size()
	row("Bounds", "%s x %s x %s", num(size.X), num(size.Y), num(size.Z))
	row("Scale", "%s", num(n.ComputedScale))
	row("Camera distance", "%s", num(n.CameraDistance))
	if n.Fallback {
		row("Framing", "fallback (empty or degenerate geometry)")
	}
	for _, w := range snap.Warnings {
		b.WriteString(warnStyle.Render("warning: " + w))
		b.WriteByte('\n')
	}
	return b.String()
}

func num(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", f), "0"), ".")
}
