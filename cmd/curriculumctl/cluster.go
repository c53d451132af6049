package main

import (
	"fmt"

	"github.com/spf13/cobra"

	types "github.com/yungbote/curriculum-backend/internal/domain"
	"github.com/yungbote/curriculum-backend/internal/modules/curriculum/cluster"
)

type clusterInput struct {
	K     int                     `yaml:"k"`
	Items []types.EmbeddingVector `yaml:"items"`
}

func newClusterCmd() *cobra.Command {
	var (
		k      int
		format string
	)
	cmd := &cobra.Command{
		Use:   "cluster FILE",
		Short: "Group pre-computed embeddings with k-means",
		Long: `Reads {k, items: [{content_id, embedding}]} and prints the resulting clusters.
--k overrides the file; 0 lets the engine pick k from the item count.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in clusterInput
			if err := readInput(args[0], &in); err != nil {
				return err
			}
			if cmd.Flags().Changed("k") {
				in.K = k
			}
			clusters, err := cluster.Cluster(in.Items, in.K)
			if err != nil {
				return fmt.Errorf("cluster: %w", err)
			}
			return writeOutput(cmd.OutOrStdout(), format, map[string]any{"clusters": clusters})
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "Number of clusters")
	cmd.Flags().StringVarP(&format, "output", "o", "json", "Output format: json|yaml")
	return cmd
}
