package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-catalog/internal/catalog"
	"library-catalog/internal/models"
)

func (a *app) projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects", "prj"},
		Short:   "List and edit projects",
	}
	cmd.AddCommand(a.projectListCmd(), a.projectAddCmd(), a.projectEditCmd(), a.projectDeleteCmd())
	return cmd
}

func (a *app) projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects with their libraries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			rows, err := a.svc.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			return a.printProjects(rows)
		},
	}
}

// projectFlags maps flag names to project attributes.
var projectFlags = []struct{ flag, key, usage string }{
	{"name", "name", "project name"},
	{"client", "client_name", "client name"},
	{"description", "description", "description"},
	{"start", "active_start_date", "active start date (YYYY-MM-DD)"},
	{"end", "active_end_date", "active end date (YYYY-MM-DD, empty to clear)"},
	{"git-url", "git_url", "git repository URL"},
	{"testing-url", "testing_url", "testing site URL"},
	{"production-url", "production_url", "production site URL"},
}

type projectValues map[string]*string

func registerProjectFlags(cmd *cobra.Command) projectValues {
	values := projectValues{}
	for _, pf := range projectFlags {
		values[pf.flag] = cmd.Flags().String(pf.flag, "", pf.usage)
	}
	return values
}

func (v projectValues) apply(cmd *cobra.Command, form *catalog.Form) error {
	for _, pf := range projectFlags {
		if !cmd.Flags().Changed(pf.flag) {
			continue
		}
		if err := form.SetAttr(pf.key, *v[pf.flag]); err != nil {
			return err
		}
	}
	return nil
}

// parseLibraryArg splits "id:version".
func parseLibraryArg(arg string) (int64, string, error) {
	idPart, version, ok := strings.Cut(arg, ":")
	if !ok {
		return 0, "", fmt.Errorf("invalid library %q: want id:version", arg)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid library id in %q", arg)
	}
	return id, version, nil
}

func (a *app) stageLibraries(cmd *cobra.Command, staged *catalog.Staging, args []string) error {
	if len(args) == 0 {
		return nil
	}
	active, err := a.svc.ActiveLibraries(cmd.Context())
	if err != nil {
		return err
	}
	for _, arg := range args {
		id, version, err := parseLibraryArg(arg)
		if err != nil {
			return err
		}
		if err := staged.Add(id, version, active); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) requireProjectPermissions() error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if !a.svc.State.ProjectPermissions {
		return errors.New("you do not have permission to change projects")
	}
	return nil
}

func (a *app) projectAddCmd() *cobra.Command {
	var libraries []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a project",
		Args:  cobra.NoArgs,
	}
	values := registerProjectFlags(cmd)
	cmd.Flags().StringArrayVar(&libraries, "library", nil, "library to attach as id:version (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("git-url")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := a.requireProjectPermissions(); err != nil {
			return err
		}
		form := a.svc.NewProjectForm()
		if err := values.apply(cmd, form); err != nil {
			return err
		}
		staged := catalog.StageProject(models.Project{})
		if err := a.stageLibraries(cmd, staged, libraries); err != nil {
			return err
		}
		p, err := a.svc.AddProject(cmd.Context(), form, staged)
		if err != nil {
			return err
		}
		a.printAlerts()
		fmt.Fprintf(a.out, "id: %d\n", p.ID)
		return nil
	}
	return cmd
}

func (a *app) projectEditCmd() *cobra.Command {
	var (
		add    []string
		remove []int64
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a project and its libraries; only the given fields are sent",
		Args:  cobra.ExactArgs(1),
	}
	values := registerProjectFlags(cmd)
	cmd.Flags().StringArrayVar(&add, "add-library", nil, "library to attach as id:version (repeatable)")
	cmd.Flags().Int64SliceVar(&remove, "remove-library", nil, "relation id to detach (repeatable)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := a.requireProjectPermissions(); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		rows, err := a.svc.ListProjects(cmd.Context())
		if err != nil {
			return err
		}
		var row *catalog.ProjectRow
		for i := range rows {
			if rows[i].ID == id {
				row = &rows[i]
			}
		}
		if row == nil {
			return fmt.Errorf("project %d not found", id)
		}

		form := catalog.ProjectForm(&row.Project, models.NewDate(timeNow()))
		if err := values.apply(cmd, form); err != nil {
			return err
		}
		if err := form.Validate(); err != nil {
			return err
		}
		for _, relID := range remove {
			if !row.Staged.RemoveByID(relID) {
				return fmt.Errorf("project %d has no library relation %d", id, relID)
			}
		}
		if err := a.stageLibraries(cmd, row.Staged, add); err != nil {
			return err
		}

		err = a.svc.EditProject(cmd.Context(), id, form, row.Staged)
		a.printAlerts()
		if errors.Is(err, catalog.ErrNothingToSave) {
			return nil
		}
		return err
	}
	return cmd
}

func (a *app) projectDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project and its library relations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireProjectPermissions(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a.svc.Confirm = a.confirmer(yes)
			err = a.svc.DeleteProject(cmd.Context(), id)
			if errors.Is(err, catalog.ErrNotConfirmed) {
				fmt.Fprintln(a.out, "Nothing was deleted.")
				return nil
			}
			if err != nil {
				return err
			}
			a.printAlerts()
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}
