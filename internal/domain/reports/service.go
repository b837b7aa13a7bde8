package reports

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"employeehub/internal/domain/appraisal"
	"employeehub/internal/domain/compliance"
	"employeehub/internal/domain/scope"
	"employeehub/internal/domain/supervision"
	"employeehub/internal/domain/training"
)

var tracer = otel.Tracer("employeehub/reports")

// appraisalHorizon covers every scheduled milestone.
const appraisalHorizon = 12

type TrainingSource interface {
	Status(ctx context.Context, caller scope.Caller, q training.StatusQuery) ([]training.StatusRow, error)
}

type SupervisionSource interface {
	Status(ctx context.Context, caller scope.Caller, employeeID string) ([]supervision.StatusRow, error)
}

type AppraisalSource interface {
	Matrix(ctx context.Context, caller scope.Caller, back, forward int) ([]appraisal.MatrixRow, error)
}

type Service struct {
	training    TrainingSource
	supervision SupervisionSource
	appraisals  AppraisalSource
	now         func() time.Time
}

func NewService(t TrainingSource, s SupervisionSource, a AppraisalSource) *Service {
	return &Service{training: t, supervision: s, appraisals: a, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Compliance gathers the three areas for the caller's scope.
func (s *Service) Compliance(ctx context.Context, caller scope.Caller) (Compliance, error) {
	ctx, span := tracer.Start(ctx, "reports.compliance")
	defer span.End()

	var (
		trainingRows    []training.StatusRow
		supervisionRows []supervision.StatusRow
		appraisalRows   []appraisal.MatrixRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		trainingRows, err = s.training.Status(gctx, caller, training.StatusQuery{})
		return err
	})
	g.Go(func() error {
		var err error
		supervisionRows, err = s.supervision.Status(gctx, caller, "")
		return err
	})
	g.Go(func() error {
		var err error
		appraisalRows, err = s.appraisals.Matrix(gctx, caller, 0, appraisalHorizon)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return Compliance{}, err
	}

	return Compliance{
		GeneratedAt:      s.now(),
		Training:         training.Summarize(trainingRows),
		Supervision:      supervision.Summarize(supervisionRows),
		Appraisals:       SummarizeAppraisals(appraisalRows),
		TrainingRows:     trainingRows,
		SupervisionRows:  supervisionRows,
		AttentionCourses: attention(trainingRows),
	}, nil
}

func SummarizeAppraisals(rows []appraisal.MatrixRow) AppraisalSummary {
	var sum AppraisalSummary
	for _, row := range rows {
		overdue := false
		for _, m := range row.Reviews {
			if m == nil || m.CompletedDate != nil {
				continue
			}
			sum.Pending++
			switch m.Status {
			case compliance.StatusOverdue:
				sum.Overdue++
				overdue = true
			case compliance.StatusDueSoon:
				sum.DueSoon++
			case compliance.StatusNotYetDue:
				sum.NotYetDue++
			}
		}
		if overdue {
			sum.EmployeesWithOverdue++
		}
	}
	sum.OnTrackRate = training.Rate(len(rows)-sum.EmployeesWithOverdue, len(rows))
	return sum
}

func attention(rows []training.StatusRow) []CourseAttention {
	byCourse := map[string]*CourseAttention{}
	for _, row := range rows {
		var bump func(*CourseAttention)
		switch row.Status {
		case compliance.TrainingExpired:
			bump = func(c *CourseAttention) { c.Expired++ }
		case compliance.TrainingExpiringSoon:
			bump = func(c *CourseAttention) { c.ExpiringSoon++ }
		case compliance.TrainingNotCompleted:
			bump = func(c *CourseAttention) { c.NotCompleted++ }
		default:
			continue
		}
		c, ok := byCourse[row.CourseID]
		if !ok {
			c = &CourseAttention{CourseID: row.CourseID, CourseName: row.CourseName}
			byCourse[row.CourseID] = c
		}
		bump(c)
	}
	out := make([]CourseAttention, 0, len(byCourse))
	for _, c := range byCourse {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		ti := out[i].Expired + out[i].NotCompleted
		tj := out[j].Expired + out[j].NotCompleted
		if ti != tj {
			return ti > tj
		}
		return out[i].CourseName < out[j].CourseName
	})
	return out
}
