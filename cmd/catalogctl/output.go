package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"library-catalog/internal/catalog"
	"library-catalog/internal/client"
	"library-catalog/internal/models"
)

var timeNow = time.Now

func alertColor(t catalog.AlertType) *color.Color {
	switch t {
	case catalog.AlertSuccess:
		return color.New(color.FgGreen)
	case catalog.AlertWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func (a *app) printAlerts() {
	for _, al := range a.svc.Alerts.Drain() {
		_, _ = alertColor(al.Type).Fprintln(a.out, al.Msg)
	}
}

// printError renders action errors as a titled dialog and anything else as a
// single line.
func (a *app) printError(err error) {
	red := color.New(color.FgRed)
	var ae *catalog.ActionError
	if errors.As(err, &ae) {
		_, _ = color.New(color.FgRed, color.Bold).Fprintln(a.errOut, ae.Title)
		_, _ = red.Fprintln(a.errOut, "  "+ae.Body)
		if a.verbose && ae.Err != nil {
			_, _ = fmt.Fprintf(a.errOut, "  cause: %v\n", ae.Err)
		}
		return
	}
	if client.IsStatus(err, http.StatusUnauthorized) {
		err = errNotLoggedIn
	}
	_, _ = red.Fprintln(a.errOut, "Error: "+err.Error())
}

func endDate(d *models.Date) string {
	if d == nil || d.IsZero() {
		return "-"
	}
	return d.String()
}

func (a *app) printLibraries(rows []catalog.LibraryRow) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDESCRIPTION\tSTART\tEND\tSTATUS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Description, r.ActiveStartDate, endDate(r.ActiveEndDate), r.Status)
	}
	return tw.Flush()
}

func (a *app) printProjects(rows []catalog.ProjectRow) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCLIENT\tSTART\tEND\tLIBRARIES")
	for _, r := range rows {
		libs := "-"
		if !r.Staged.NoAddedLibraries {
			parts := make([]string, 0, len(r.Staged.Entries))
			for _, e := range r.Staged.Entries {
				parts = append(parts, fmt.Sprintf("%s@%s (#%d)", e.Description, e.Version, e.ID))
			}
			libs = strings.Join(parts, ", ")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.ClientName, r.ActiveStartDate, endDate(r.ActiveEndDate), libs)
	}
	return tw.Flush()
}
