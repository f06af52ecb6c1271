package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tsawler/go-datasource/checkpoints"
	"github.com/tsawler/go-datasource/config"
	"github.com/tsawler/go-datasource/diagnostics"
	"github.com/tsawler/go-datasource/sampler"
	"gopkg.in/yaml.v2"
)

func inspectCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect CHECKPOINT",
		Short: "print the training and sampler state stored in a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if format == "" {
				format = "json"
				if filepath.Ext(path) == ".pb" {
					format = "proto"
				}
			}
			f, err := checkpoints.ParseFormat(format)
			if err != nil {
				return err
			}
			ck, err := checkpoints.NewCheckpointSaver(f).LoadCheckpoint(path)
			if err != nil {
				return err
			}
			return printCheckpoint(cmd.OutOrStdout(), ck)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "checkpoint format, json or proto (default from the extension)")
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "print the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(config.Default())
			if err != nil {
				return errors.Wrap(err, "failed to marshal configuration")
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func printCheckpoint(w io.Writer, ck *checkpoints.Checkpoint) error {
	ts := ck.TrainingState
	fmt.Fprintf(w, "created:       %s (%s)\n", ck.Metadata.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(ck.Metadata.CreatedAt))
	if ck.Metadata.Description != "" {
		fmt.Fprintf(w, "description:   %s\n", ck.Metadata.Description)
	}
	fmt.Fprintf(w, "epoch:         %d\n", ts.Epoch)
	fmt.Fprintf(w, "step:          %s\n", humanize.Comma(int64(ts.Step)))
	fmt.Fprintf(w, "depth:         %d\n", ts.Depth)
	fmt.Fprintf(w, "best accuracy: %.2f%%\n", ts.BestAccuracy*100)
	fmt.Fprintf(w, "total picked:  %s\n", humanize.Comma(int64(ts.TotalPicked)))

	var params int
	for _, wt := range ck.Weights {
		params += len(wt.Data)
	}
	fmt.Fprintf(w, "weights:       %d tensors, %s values\n", len(ck.Weights), humanize.Comma(int64(params)))

	st := ck.Sampler
	if st == nil {
		return errors.New("checkpoint has no sampler state")
	}
	fmt.Fprintf(w, "sampler:       %s, %s samples, epoch %d\n", st.Name, humanize.Comma(int64(st.Size)), st.EpochCnt)
	if st.Class != nil {
		fmt.Fprintf(w, "remaining:     %s\n", joinInts(st.Class.Remaining))
	}
	if st.Hierarchy != nil {
		fmt.Fprintf(w, "tree depth:    %d\n", st.Hierarchy.Depth)
	}

	s := diagnostics.Summarize(stateReport(st))
	fmt.Fprintf(w, "observed:      %s (%s incorrect)\n", humanize.Comma(int64(s.Observed)), humanize.Comma(int64(s.Incorrect)))
	fmt.Fprintf(w, "energy:        mean %.4f, median %.4f, p90 %.4f, max %.4f\n", s.MeanEnergy, s.MedianEnergy, s.P90Energy, s.MaxEnergy)
	fmt.Fprintf(w, "proba:         mean %.4f, min %.4f\n", s.MeanProba, s.MinProba)
	fmt.Fprintf(w, "picked:        %.1f%% of samples, %.2f times on average, at most %d\n", s.PickedFraction*100, s.MeanPickCount, s.MaxPickCount)
	return nil
}

// stateReport rebuilds the per sample statistics held by a snapshot
func stateReport(st *sampler.State) *sampler.Report {
	return &sampler.Report{
		Name:       st.Name,
		PickCounts: st.PickCount,
		Energies:   st.Energies,
		Correct:    st.Correct,
		Observed:   st.Observed,
		Probas:     st.Probas,
	}
}

func joinInts(v []int) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = fmt.Sprint(n)
	}
	return strings.Join(s, " ")
}

