package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deusflow/digest/internal/config"
	"github.com/deusflow/digest/internal/profile"
)

func newProfilesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage stored interest profiles",
	}
	cmd.AddCommand(newProfilesListCmd(c), newProfilesShowCmd(c), newProfilesSaveCmd(c))
	return cmd
}

func (c *cli) store() *profile.Store {
	return profile.NewStore(c.cfg.User.ProfilesDir, c.log)
}

func newProfilesListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := c.store().List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No user profiles found.")
				return nil
			}
			fmt.Fprintln(out, "Available user profiles:")
			for _, n := range names {
				fmt.Fprintf(out, "- %s\n", n)
			}
			return nil
		},
	}
}

func newProfilesShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Print a stored profile as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.store().Load(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
}

func newProfilesSaveCmd(c *cli) *cobra.Command {
	var p profile.Profile

	cmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Create or update a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Name = args[0]
			saved, err := c.store().Save(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %q with %d interests\n", saved.Name, len(saved.Interests))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&p.Interests, "interests", nil, "comma-separated interest terms")
	cmd.Flags().StringVar(&p.MatchingMethod, "method", config.MatchKeyword, "matching method (keyword or embedding)")
	cmd.Flags().Float64Var(&p.MinRelevanceScore, "min-score", 0.3, "minimum relevance score")
	_ = cmd.MarkFlagRequired("interests")
	return cmd
}
