package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/memoant/internal/output"
	"github.com/codebuildervaibhav/memoant/internal/storage"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	var dbPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processed recordings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(deps.Out)
			if dbPath == "" {
				dbPath = deps.Config.Output.OracleDB
			}

			store, err := storage.NewRecordStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				f.Info("No recordings processed yet.")
				return nil
			}
			now := time.Now()
			for _, rec := range recs {
				f.RecordListItem(rec, now)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Path to oracle.db")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of recordings to show")

	return cmd
}
