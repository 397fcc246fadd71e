package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/internal/service"
	"github.com/noah-isme/ace-lms-api/pkg/filter"
)

func errUnknownOutput(format string) error {
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
}

// listFlags are the paging and ordering flags shared by every list command.
type listFlags struct {
	sortBy   string
	desc     bool
	page     int
	pageSize int
	criteria map[string]*string
}

func bindListFlags(cmd *cobra.Command, keys ...string) *listFlags {
	lf := &listFlags{criteria: make(map[string]*string, len(keys))}
	for _, key := range keys {
		lf.criteria[key] = cmd.Flags().String(key, "", "filter by "+key)
	}
	cmd.Flags().StringVar(&lf.sortBy, "sort", "", "sort key")
	cmd.Flags().BoolVar(&lf.desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&lf.page, "page", 1, "page number")
	cmd.Flags().IntVar(&lf.pageSize, "page-size", 0, fmt.Sprintf("rows per page, at most %d (0 uses the maximum)", models.MaxPageSize))
	return lf
}

func (lf *listFlags) query() service.ListQuery {
	criteria := filter.Criteria{}
	for key, value := range lf.criteria {
		if *value != "" {
			criteria[key] = *value
		}
	}
	q := service.ListQuery{
		Criteria: criteria,
		Order:    filter.Order{Key: lf.sortBy, Desc: lf.desc},
		Page:     models.PageParams{Page: lf.page, PageSize: lf.pageSize},
	}
	if lf.pageSize <= 0 {
		q.Page.PageSize = models.MaxPageSize
	}
	return q
}

func newCoursesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "Filter the course catalog",
		Example: `  lmsctl courses --status in_progress
  lmsctl courses --college Leadership --sort progress --desc`,
		Args: cobra.NoArgs,
	}
	lf := bindListFlags(cmd, service.CourseKeyLevel, service.CourseKeyCollege, service.CourseKeyStatus, "title", service.CourseKeySearch)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		res, err := a.courses.List(cmd.Context(), a.opts.asUser, lf.query())
		if err != nil {
			return err
		}
		headers := []string{"ID", "TITLE", "COLLEGE", "LEVEL", "MODULES", "STATUS", "PROGRESS"}
		rows := make([][]string, 0, len(res.Items))
		for _, c := range res.Items {
			rows = append(rows, []string{c.ID, c.Title, c.College, c.Level, strconv.Itoa(c.Modules), string(c.Status()), percent(c.Progress)})
		}
		return a.render(res.Items, res.Summary, res.Pagination, headers, rows)
	}
	return cmd
}

func newMVKCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mvk",
		Aliases: []string{"requirements"},
		Short:   "Filter minimum viable knowledge requirements",
		Example: `  lmsctl mvk --status completed
  lmsctl mvk --as usr-004 --type assessment`,
		Args: cobra.NoArgs,
	}
	lf := bindListFlags(cmd, service.RequirementKeyCollege, service.RequirementKeyStatus, service.RequirementKeyLevel, service.RequirementKeyType, "title")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		res, err := a.requirements.List(cmd.Context(), a.opts.asUser, lf.query())
		if err != nil {
			return err
		}
		headers := []string{"ID", "TITLE", "TYPE", "COLLEGE", "STATUS", "PROGRESS"}
		rows := make([][]string, 0, len(res.Items))
		for _, r := range res.Items {
			rows = append(rows, []string{r.ID, r.Title, string(r.Type), r.College, string(r.Status), percent(r.Progress)})
		}
		return a.render(res.Items, res.Summary, res.Pagination, headers, rows)
	}
	return cmd
}

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Short:   "Filter the user directory",
		Example: `  lmsctl users --role learner --status active --sort points --desc`,
		Args:    cobra.NoArgs,
	}
	lf := bindListFlags(cmd, service.UserKeyRole, service.UserKeyStatus, service.UserKeySearch)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		res, err := a.users.List(cmd.Context(), lf.query())
		if err != nil {
			return err
		}
		headers := []string{"ID", "NAME", "EMAIL", "ROLE", "STATUS", "LEVEL", "POINTS"}
		rows := make([][]string, 0, len(res.Items))
		for _, u := range res.Items {
			rows = append(rows, []string{u.ID, u.Name, u.Email, string(u.Role), string(u.Status), strconv.Itoa(u.Level), strconv.Itoa(u.TotalPoints)})
		}
		return a.render(res.Items, res.Summary, res.Pagination, headers, rows)
	}
	return cmd
}

func percent(v int) string {
	return strconv.Itoa(v) + "%"
}
