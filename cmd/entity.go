package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
)

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Manage canonical customer and agency entities",
}

var entityAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a canonical entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := entityKindFlag(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		existing, err := st.FindEntityByName(ctx, kind, args[0])
		if err != nil {
			return err
		}
		if existing != nil {
			return eris.Errorf("entity %q (%s) already exists: %s", args[0], kind, existing.ID)
		}

		e, err := st.CreateEntity(ctx, kind, args[0])
		if err != nil {
			return err
		}
		zap.L().Info("entity created",
			zap.String("id", e.ID),
			zap.String("kind", string(e.Kind)),
			zap.String("name", e.Name),
		)
		fmt.Println(e.ID)
		return nil
	},
}

var entityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List canonical entities",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		kind, err := entityKindFlag(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entities, err := st.ListEntities(ctx, kind)
		if err != nil {
			return eris.Wrap(err, "entity list")
		}
		if len(entities) == 0 {
			fmt.Fprintln(os.Stderr, "No entities found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tKIND\tNAME\tCREATED")
		for _, e := range entities {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.ID, e.Kind, e.Name, e.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

// entityKindFlag reads and validates the shared --kind flag.
func entityKindFlag(cmd *cobra.Command) (model.EntityKind, error) {
	raw, _ := cmd.Flags().GetString("kind")
	kind := model.EntityKind(raw)
	if !kind.Valid() {
		return "", eris.Errorf("invalid kind %q (customer, agency)", raw)
	}
	return kind, nil
}

func init() {
	entityAddCmd.Flags().String("kind", "customer", "entity kind: customer or agency")
	entityListCmd.Flags().String("kind", "customer", "entity kind: customer or agency")
	entityCmd.AddCommand(entityAddCmd)
	entityCmd.AddCommand(entityListCmd)
	rootCmd.AddCommand(entityCmd)
}
