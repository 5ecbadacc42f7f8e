package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/pkordes/grumeter/internal/calculator"
	"github.com/pkordes/grumeter/internal/carbonapi"
	"github.com/pkordes/grumeter/internal/config"
	"github.com/pkordes/grumeter/internal/domain"
	"github.com/pkordes/grumeter/internal/ecotour"
	"github.com/pkordes/grumeter/internal/form"
	"github.com/pkordes/grumeter/internal/funnel"
	"github.com/pkordes/grumeter/internal/querycache"
)

// errUsage marks command-line mistakes. The message is already printed.
var errUsage = errors.New("usage error")

// options holds the parsed command line.
type options struct {
	apiURL       string
	tokenFile    string
	saveToken    string
	logout       bool
	participants int
	routes       []string
	courses      []string
	stays        []string
	format       string
	logLevel     string

	listCourses bool
	filters     domain.CourseFilters
	like        int
}

func parseFlags(args []string, cfg config.ClientConfig, stderr io.Writer) (options, error) {
	var o options
	fs := pflag.NewFlagSet("grumeter", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.apiURL, "api", cfg.APIURL, "base URL of the Grumeter API")
	fs.StringVar(&o.tokenFile, "token-file", cfg.TokenFile, "file holding the bearer token")
	fs.StringVar(&o.saveToken, "save-token", "", "store `TOKEN` in the token file and exit")
	fs.BoolVar(&o.logout, "logout", false, "remove the token file and exit")
	fs.IntVarP(&o.participants, "participants", "p", 1, "number of travellers")
	fs.StringArrayVarP(&o.routes, "route", "r", nil, "city leg as `DEPARTURE:ARRIVAL:TRANSPORT` (repeatable)")
	fs.StringArrayVarP(&o.courses, "course", "c", nil, "eco-course leg as `COURSE:TRANSPORT`, course by id or title (repeatable, after --route legs)")
	fs.StringArrayVarP(&o.stays, "stay", "s", nil, "stay as `TYPE:CHECK_IN:CHECK_OUT` with YYYY-MM-DD dates (repeatable)")
	fs.StringVarP(&o.format, "format", "f", "text", "output format: text, json or csv")
	fs.StringVar(&o.logLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	fs.BoolVar(&o.listCourses, "courses", false, "list eco-courses and exit")
	fs.StringVar(&o.filters.AreaName, "area", "", "with --courses: only courses in `AREA`")
	fs.StringVar(&o.filters.SigunguName, "sigungu", "", "with --courses: only courses in `DISTRICT`")
	fs.StringVar(&o.filters.Tag, "tag", "", "with --courses: only courses tagged `TAG`")
	fs.IntVar(&o.like, "like", 0, "toggle your like on course `ID` and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return options{}, err
		}
		return options{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	switch o.format {
	case "text", "json", "csv":
	default:
		return options{}, fmt.Errorf("%w: unknown --format %q", errUsage, o.format)
	}
	if o.like < 0 {
		return options{}, fmt.Errorf("%w: --like needs a course id", errUsage)
	}
	if !o.listCourses && !o.filters.IsZero() {
		return options{}, fmt.Errorf("%w: --area, --sigungu and --tag need --courses", errUsage)
	}
	return o, nil
}

// run executes one command: a token change, a course listing, a like
// toggle, or by default one calculation. It returns nil after --help.
func run(ctx context.Context, args []string, cfg config.ClientConfig, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, cfg, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	store := carbonapi.FileTokenStore{Path: o.tokenFile}
	switch {
	case o.saveToken != "":
		if err := store.Save(o.saveToken); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "token saved to", o.tokenFile)
		return nil
	case o.logout:
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "token removed")
		return nil
	}

	var tokens carbonapi.TokenSource = store
	if cfg.Token != "" {
		tokens = carbonapi.StaticToken(cfg.Token)
	}
	client := carbonapi.New(o.apiURL,
		carbonapi.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		carbonapi.WithTokenSource(tokens),
		carbonapi.WithLogger(logger),
	)

	policy := querycache.DefaultRetryPolicy()
	policy.ShouldRetry = carbonapi.Retryable
	cache := querycache.New(querycache.Options{Retry: policy, Logger: logger})
	defer cache.Close()

	tours := ecotour.NewService(client, cache, logger)
	switch {
	case o.listCourses:
		courses, err := tours.List(ctx, o.filters)
		if err != nil {
			return err
		}
		return renderCourses(stdout, o.format, courses)
	case o.like > 0:
		return toggleLike(ctx, stdout, tours, o.like)
	}

	wf := calculator.New(client, cache, logger)
	wf.OnStepChange(func(from, to funnel.Step) {
		logger.Debug("step changed", "from", from.String(), "to", to.String(), "progress", to.Progress())
	})

	res, err := calculate(ctx, wf, calculator.NewReference(client, cache), tours, o)
	if err != nil {
		return err
	}
	return render(stdout, o.format, res)
}

// calculate fills the draft from o, then walks the funnel to DONE.
// Every name is resolved before the session is opened.
func calculate(ctx context.Context, wf *calculator.Workflow, ref *calculator.Reference, tours *ecotour.Service, o options) (domain.CalculationResult, error) {
	if err := wf.SetParticipantCount(o.participants); err != nil {
		return domain.CalculationResult{}, err
	}
	for _, arg := range o.routes {
		d, err := cityRoute(ctx, ref, arg)
		if err != nil {
			return domain.CalculationResult{}, err
		}
		if err := wf.AddRoute(d); err != nil {
			return domain.CalculationResult{}, fmt.Errorf("--route %s: %w", arg, err)
		}
	}
	for _, arg := range o.courses {
		d, err := courseRoute(ctx, ref, tours, arg)
		if err != nil {
			return domain.CalculationResult{}, err
		}
		if err := wf.AddRoute(d); err != nil {
			return domain.CalculationResult{}, fmt.Errorf("--course %s: %w", arg, err)
		}
	}
	for _, arg := range o.stays {
		d, err := stay(ctx, ref, arg)
		if err != nil {
			return domain.CalculationResult{}, err
		}
		if err := wf.AddAccommodation(d); err != nil {
			return domain.CalculationResult{}, fmt.Errorf("--stay %s: %w", arg, err)
		}
	}

	// Catch empty steps before a session is opened for nothing.
	draft := wf.Draft()
	if err := draft.ValidateRoutes(); err != nil {
		return domain.CalculationResult{}, err
	}
	if err := draft.ValidateAccommodations(); err != nil {
		return domain.CalculationResult{}, err
	}

	if _, err := wf.SubmitPersonnel(ctx); err != nil {
		return domain.CalculationResult{}, err
	}
	if _, err := wf.SubmitRoutes(ctx); err != nil {
		return domain.CalculationResult{}, err
	}
	if _, err := wf.SubmitAccommodations(ctx); err != nil {
		return domain.CalculationResult{}, err
	}
	return wf.Calculate(ctx)
}

func cityRoute(ctx context.Context, ref *calculator.Reference, arg string) (form.RouteDraft, error) {
	parts := strings.Split(arg, ":")
	if len(parts) != 3 {
		return form.RouteDraft{}, fmt.Errorf("%w: --route %q: want DEPARTURE:ARRIVAL:TRANSPORT", errUsage, arg)
	}
	dep, err := ref.LocationID(ctx, parts[0])
	if err != nil {
		return form.RouteDraft{}, fmt.Errorf("--route %s: %w", arg, err)
	}
	arr, err := ref.LocationID(ctx, parts[1])
	if err != nil {
		return form.RouteDraft{}, fmt.Errorf("--route %s: %w", arg, err)
	}
	tt, err := ref.TransportationTypeID(ctx, parts[2])
	if err != nil {
		return form.RouteDraft{}, fmt.Errorf("--route %s: %w", arg, err)
	}
	return form.CityRoute(dep, arr, tt), nil
}

func courseRoute(ctx context.Context, ref *calculator.Reference, tours *ecotour.Service, arg string) (form.RouteDraft, error) {
	i := strings.LastIndex(arg, ":")
	if i <= 0 || i == len(arg)-1 {
		return form.RouteDraft{}, fmt.Errorf("%w: --course %q: want COURSE:TRANSPORT", errUsage, arg)
	}
	course, err := courseID(ctx, tours, arg[:i])
	if err != nil {
		return form.RouteDraft{}, fmt.Errorf("--course %s: %w", arg, err)
	}
	tt, err := ref.TransportationTypeID(ctx, arg[i+1:])
	if err != nil {
		return form.RouteDraft{}, fmt.Errorf("--course %s: %w", arg, err)
	}
	return form.CourseRoute(course, tt), nil
}

// courseID resolves a course given by id or by title (case-insensitive)
// against the unfiltered course list.
func courseID(ctx context.Context, tours *ecotour.Service, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		return id, nil
	}
	courses, err := tours.List(ctx, domain.CourseFilters{})
	if err != nil {
		return 0, err
	}
	for _, c := range courses {
		if strings.EqualFold(c.Title, ref) {
			return c.ID, nil
		}
	}
	return 0, fmt.Errorf("unknown course %q: %w", ref, domain.ErrNotFound)
}

// toggleLike flips the like on a course and prints the course's new state,
// read back from the patched detail entry.
func toggleLike(ctx context.Context, w io.Writer, tours *ecotour.Service, id int) error {
	if _, err := tours.Detail(ctx, id); err != nil {
		return err
	}
	if _, err := tours.ToggleLike(ctx, id); err != nil {
		return err
	}
	d, err := tours.Detail(ctx, id)
	if err != nil {
		return err
	}
	state := "unliked"
	if d.IsLiked {
		state = "liked"
	}
	_, err = fmt.Fprintf(w, "%s: %s (%d likes)\n", d.Title, state, d.LikeCount)
	return err
}

func stay(ctx context.Context, ref *calculator.Reference, arg string) (form.AccommodationDraft, error) {
	parts := strings.Split(arg, ":")
	if len(parts) != 3 {
		return form.AccommodationDraft{}, fmt.Errorf("%w: --stay %q: want TYPE:CHECK_IN:CHECK_OUT", errUsage, arg)
	}
	at, err := ref.AccommodationTypeID(ctx, parts[0])
	if err != nil {
		return form.AccommodationDraft{}, fmt.Errorf("--stay %s: %w", arg, err)
	}
	in, err := time.Parse(time.DateOnly, parts[1])
	if err != nil {
		return form.AccommodationDraft{}, fmt.Errorf("%w: --stay %q: check-in must be YYYY-MM-DD", errUsage, arg)
	}
	out, err := time.Parse(time.DateOnly, parts[2])
	if err != nil {
		return form.AccommodationDraft{}, fmt.Errorf("%w: --stay %q: check-out must be YYYY-MM-DD", errUsage, arg)
	}
	return form.AccommodationDraft{AccommodationTypeID: at, CheckIn: in, CheckOut: out}, nil
}
