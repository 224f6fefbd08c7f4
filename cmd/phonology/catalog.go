package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func newPhonemesCmd(a *app) *cobra.Command {
	var withTypes bool
	cmd := &cobra.Command{
		Use:   "phonemes",
		Short: "List the phonemes of the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			if !withTypes {
				ids, err := svc.ListPhonemes(cmd.Context())
				if err != nil {
					return err
				}
				a.printf("%s\n", strings.Join(ids, " "))
				return nil
			}

			typed, err := svc.ListPhonemesWithTypes(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable([]string{"phoneme", "type"})
			for _, pt := range typed {
				t.Row(pt.Phoneme, pt.Type)
			}
			a.printf("%s\n", t.Render())
			return nil
		},
	}
	cmd.Flags().BoolVar(&withTypes, "types", false, "show the type column next to each phoneme")
	return cmd
}

func newFeaturesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "List the feature names of the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			names, err := svc.ListFeatures(cmd.Context())
			if err != nil {
				return err
			}
			a.printf("%s\n", strings.Join(names, "\n"))
			return nil
		},
	}
}
