package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planner/internal/config"
	"planner/internal/domain"
	"planner/internal/events"
	"planner/internal/repo"
)

// ErrValidation marks invalid caller input.
var ErrValidation = errors.New("validation failed")

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Log    *zap.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, log *zap.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Config: cfg,
		Log:    log,
		Now:    time.Now,
	}
	return e
}

// Location is the zone used for calendar-day calculations.
func (e Engine) Location() *time.Location {
	if e.Config != nil {
		if loc, err := e.Config.Location(); err == nil {
			return loc
		}
	}
	return time.Local
}

// now returns the current time in the configured location.
func (e Engine) now() time.Time {
	n := time.Now
	if e.Now != nil {
		n = e.Now
	}
	return n().In(e.Location())
}

// Clock is the engine's current time in the configured location.
func (e Engine) Clock() time.Time {
	return e.now()
}

func (e Engine) logger() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// patchString applies an optional reference update; "" clears it.
func patchString(dst **string, v *string) {
	if v == nil {
		return
	}
	*dst = optionalString(*v)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// ParseDue accepts YYYY-MM-DD, RFC3339, "today", "tomorrow" and "+Nd".
// Dates without a time are midnight in loc.
func ParseDue(s string, now time.Time) (*time.Time, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "none" {
		return nil, nil
	}
	loc := now.Location()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	switch {
	case s == "today":
		return &today, nil
	case s == "tomorrow":
		t := today.AddDate(0, 0, 1)
		return &t, nil
	case strings.HasPrefix(s, "+") && strings.HasSuffix(s, "d"):
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(s, "+"), "d"))
		if err != nil {
			return nil, validationf("invalid relative due %q", s)
		}
		t := today.AddDate(0, 0, n)
		return &t, nil
	}
	if t, err := time.ParseInLocation(domain.DateLayout, s, loc); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, strings.ToUpper(s)); err == nil {
		return &t, nil
	}
	return nil, validationf("invalid date %q (want YYYY-MM-DD, RFC3339, today, tomorrow or +Nd)", s)
}

func requireTitle(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return validationf("%s is required", field)
	}
	return nil
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return validationf("%s must be one of %s", field, strings.Join(allowed, ", "))
}

func finite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return validationf("%s must be a finite number", field)
	}
	return nil
}

// checkRef turns a missing referenced entity into a validation error.
func (e Engine) checkRef(ctx context.Context, tx *sql.Tx, kind string, id *string) error {
	if id == nil {
		return nil
	}
	var err error
	switch kind {
	case domain.KindClient:
		_, err = e.Repo.GetClientTx(ctx, tx, *id)
	case domain.KindProject:
		_, err = e.Repo.GetProjectTx(ctx, tx, *id)
	case domain.KindTask:
		_, err = e.Repo.GetTaskTx(ctx, tx, *id)
	default:
		return fmt.Errorf("unknown reference kind %s", kind)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return validationf("%s %s not found", kind, *id)
	}
	return err
}
