package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-lms-api/internal/service"
	"github.com/noah-isme/ace-lms-api/internal/store"
)

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

type globalOptions struct {
	seedFile string
	asUser   string
	output   string
	strict   bool
	verbose  bool
}

// app holds the services built from the fixture store for one invocation.
type app struct {
	out          io.Writer
	opts         globalOptions
	logger       *zap.Logger
	courses      *service.CourseService
	requirements *service.RequirementService
	users        *service.UserService
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "lmsctl",
		Short: "Filter and summarize ACE LMS catalogs",
		Long: `lmsctl runs the catalog filter engine over a fixture file without a server.

Every subcommand prints the visible rows followed by the summary of the whole
collection. Filters that are left empty do not constrain the result.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.seedFile, "seed", "", "fixture file to load (defaults to the embedded demo data)")
	flags.StringVar(&a.opts.asUser, "as", "usr-003", "user whose enrollment and MVK progress is shown (empty shows the bare catalog)")
	flags.StringVarP(&a.opts.output, "output", "o", outputTable, "output format: table, json or yaml")
	flags.BoolVar(&a.opts.strict, "strict", false, "reject filter keys the engine does not know")
	flags.BoolVarP(&a.opts.verbose, "verbose", "v", false, "log engine activity to stderr")

	root.AddCommand(newCoursesCmd(a), newMVKCmd(a), newUsersCmd(a))
	return root
}

func (a *app) init() error {
	switch a.opts.output {
	case outputTable, outputJSON, outputYAML:
	default:
		return errUnknownOutput(a.opts.output)
	}

	a.logger = zap.NewNop()
	if a.opts.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		a.logger = l
	}

	m, err := store.Open(a.opts.seedFile)
	if err != nil {
		return err
	}
	catalog, err := service.NewCatalog(a.opts.strict)
	if err != nil {
		return err
	}

	users := store.NewUserRepository(m)
	a.users = service.NewUserService(users, nil, catalog, nil, a.logger)
	a.courses = service.NewCourseService(store.NewCourseRepository(m), users, nil, catalog, nil, a.logger)
	a.requirements = service.NewRequirementService(store.NewRequirementRepository(m), nil, catalog, nil, a.logger)
	a.logger.Debug("fixture store loaded", zap.String("seed", a.opts.seedFile), zap.Bool("strict", a.opts.strict))
	return nil
}
