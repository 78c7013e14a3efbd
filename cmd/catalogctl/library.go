package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"library-catalog/internal/catalog"
	"library-catalog/internal/client"
	"library-catalog/internal/models"
)

func (a *app) libraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "library",
		Aliases: []string{"libraries", "lib"},
		Short:   "List and edit libraries",
	}
	cmd.AddCommand(a.libraryListCmd(), a.libraryAddCmd(), a.libraryEditCmd(), a.libraryRetireCmd())
	return cmd
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func (a *app) libraryListCmd() *cobra.Command {
	var active, inactive bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List libraries with their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			rows, err := a.svc.ListLibraries(cmd.Context())
			if err != nil {
				return err
			}
			if active || inactive {
				want := catalog.StatusActive
				if inactive {
					want = catalog.StatusInactive
				}
				kept := rows[:0]
				for _, r := range rows {
					if r.Status == want {
						kept = append(kept, r)
					}
				}
				rows = kept
			}
			return a.printLibraries(rows)
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "only active libraries")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "only inactive libraries")
	cmd.MarkFlagsMutuallyExclusive("active", "inactive")
	return cmd
}

// libraryFlags are the editable attributes shared by add and edit.
type libraryFlags struct {
	description, start, end string
}

func (f *libraryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.description, "description", "", "library description")
	cmd.Flags().StringVar(&f.start, "start", "", "active start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "active end date (YYYY-MM-DD, empty to clear)")
}

// apply copies the flags the user set onto form.
func (f *libraryFlags) apply(cmd *cobra.Command, form *catalog.Form) error {
	for flag, attr := range map[string]struct {
		key   string
		value string
	}{
		"description": {"description", f.description},
		"start":       {"active_start_date", f.start},
		"end":         {"active_end_date", f.end},
	} {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		if err := form.SetAttr(attr.key, attr.value); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) libraryAddCmd() *cobra.Command {
	var flags libraryFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			form := catalog.LibraryForm(nil)
			if err := flags.apply(cmd, form); err != nil {
				return err
			}
			lib, err := a.svc.AddLibrary(cmd.Context(), form)
			if err != nil {
				return err
			}
			a.printAlerts()
			fmt.Fprintf(a.out, "id: %d\n", lib.ID)
			return nil
		},
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

// findLibrary looks id up in the full list.
func (a *app) findLibrary(cmd *cobra.Command, id int64) (models.Library, error) {
	libs, err := a.api.ListLibraries(cmd.Context(), client.All)
	if err != nil {
		return models.Library{}, err
	}
	for _, l := range libs {
		if l.ID == id {
			return l, nil
		}
	}
	return models.Library{}, fmt.Errorf("library %d not found", id)
}

func (a *app) libraryEditCmd() *cobra.Command {
	var flags libraryFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a library; only the given fields are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			lib, err := a.findLibrary(cmd, id)
			if err != nil {
				return err
			}
			form := catalog.LibraryForm(&lib)
			if err := flags.apply(cmd, form); err != nil {
				return err
			}
			if err := form.Validate(); err != nil {
				return err
			}
			err = a.svc.EditLibrary(cmd.Context(), id, form)
			a.printAlerts()
			if errors.Is(err, catalog.ErrNothingToSave) {
				return nil
			}
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) libraryRetireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retire <id>",
		Short: "End a library yesterday so it is no longer active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			lib, err := a.findLibrary(cmd, id)
			if err != nil {
				return err
			}
			err = a.svc.RetireLibrary(cmd.Context(), lib)
			a.printAlerts()
			if errors.Is(err, catalog.ErrNothingToSave) {
				return nil
			}
			return err
		},
	}
}
