package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/civicdata/lexcache/pkg/indexer"
	"github.com/civicdata/lexcache/pkg/storage"
	"github.com/civicdata/lexcache/pkg/types"
)

// Index commands run one indexing job to completion and print its report.
// They share the server's cache database, so the server must be stopped
// first (BoltDB is single-writer).
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Run indexing jobs against the cache",
}

var indexMembershipCmd = &cobra.Command{
	Use:   "membership",
	Short: "Index the member directory",
	RunE: runIndexJob(func(ctx context.Context, eng *indexer.Engine, opts indexer.Options) (*types.IndexReport, error) {
		return eng.IndexMembership(ctx, opts)
	}),
}

var indexInformationCmd = &cobra.Command{
	Use:   "information",
	Short: "Index member name information",
	RunE: runIndexJob(func(ctx context.Context, eng *indexer.Engine, opts indexer.Options) (*types.IndexReport, error) {
		return eng.IndexInformation(ctx, opts)
	}),
}

var indexCommitteesCmd = &cobra.Command{
	Use:   "committees",
	Short: "Index the committee list",
	RunE: runIndexJob(func(ctx context.Context, eng *indexer.Engine, opts indexer.Options) (*types.IndexReport, error) {
		return eng.IndexCommittees(ctx, opts)
	}),
}

var indexDocumentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Index per-person document relationships for one congress",
	RunE: runIndexJob(func(ctx context.Context, eng *indexer.Engine, opts indexer.Options) (*types.IndexReport, error) {
		return eng.IndexCongressDocuments(ctx, flagCongress, opts)
	}),
}

var indexCommitteeDocsCmd = &cobra.Command{
	Use:   "committee-documents",
	Short: "Index per-committee document relationships for one congress",
	RunE: runIndexJob(func(ctx context.Context, eng *indexer.Engine, opts indexer.Options) (*types.IndexReport, error) {
		return eng.IndexCommitteeRelations(ctx, flagCongress, opts)
	}),
}

var indexDocumentCmd = &cobra.Command{
	Use:   "document <key>",
	Short: "Index the metadata of a single document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer app.store.Close()

		found, err := app.engine.IndexDocumentInfo(cmd.Context(), flagCongress, args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("document %d/%s not found upstream", flagCongress, args[0])
		}
		fmt.Printf("indexed %d/%s\n", flagCongress, args[0])
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reclaim space held by expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := store.Sweep(storage.Key{})
		if err != nil {
			return err
		}
		fmt.Printf("removed %d expired entries\n", removed)
		return nil
	},
}

var (
	flagCongress  int
	flagPersonID  string
	flagStart     int
	flagChunkSize int
)

func init() {
	indexCmd.AddCommand(indexMembershipCmd)
	indexCmd.AddCommand(indexInformationCmd)
	indexCmd.AddCommand(indexCommitteesCmd)
	indexCmd.AddCommand(indexDocumentsCmd)
	indexCmd.AddCommand(indexCommitteeDocsCmd)
	indexCmd.AddCommand(indexDocumentCmd)

	for _, cmd := range []*cobra.Command{indexMembershipCmd, indexInformationCmd, indexCommitteesCmd, indexDocumentsCmd, indexCommitteeDocsCmd} {
		cmd.Flags().IntVar(&flagStart, "start", 0, "Resumable cursor from a previous report's nextStart")
		cmd.Flags().IntVar(&flagChunkSize, "chunk-size", 0, "Work units per invocation (0 = configured default)")
	}
	for _, cmd := range []*cobra.Command{indexDocumentsCmd, indexCommitteeDocsCmd, indexDocumentCmd} {
		cmd.Flags().IntVar(&flagCongress, "congress", 0, "Canonical congress number")
		cmd.MarkFlagRequired("congress")
	}
	indexDocumentsCmd.Flags().StringVar(&flagPersonID, "person", "", "Index only this person")
}

func runIndexJob(job func(context.Context, *indexer.Engine, indexer.Options) (*types.IndexReport, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer app.store.Close()

		rep, err := job(cmd.Context(), app.engine, indexer.Options{
			PersonID:   flagPersonID,
			StartIndex: flagStart,
			ChunkSize:  flagChunkSize,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
		if rep.Failed() {
			return fmt.Errorf("%d work units exhausted retries", len(rep.Failures))
		}
		return nil
	}
}
