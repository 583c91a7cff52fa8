package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/recurrence"
	"github.com/diewo77/go-backoffice/internal/tenant"
	"github.com/diewo77/go-backoffice/validation"
)

// Recurring template conflict codes.
const (
	CodeInvalidTransition = "invalid_transition"
	CodeRecurringFinished = "recurring_finished"
)

const (
	// DefaultCatchUpLimit bounds the occurrences one Tick handles per template.
	DefaultCatchUpLimit = 366
	// MaxDaysBeforeDue bounds DaysBeforeDueToCreate.
	MaxDaysBeforeDue = 365
)

// RecurringInput is the payload of template Create and Update.
type RecurringInput struct {
	AccountID             string          `json:"accountId"`
	CategoryID            string          `json:"categoryId"`
	ContactID             string          `json:"contactId"`
	Description           string          `json:"description"`
	Type                  string          `json:"baseTransactionType"`
	Amount                decimal.Decimal `json:"baseAmount"`
	RecurrenceRule        string          `json:"recurrenceRule"`
	StartDate             string          `json:"startDate"`
	EndDate               string          `json:"endDate"`
	AutoCreateTransaction bool            `json:"autoCreateTransaction"`
	DaysBeforeDueToCreate int             `json:"daysBeforeDueToCreate"`
}

// TickReport summarizes one Tick.
type TickReport struct {
	Scanned  int `json:"scanned"`
	Created  int `json:"created"`
	Finished int `json:"finished"`
	Failed   int `json:"failed"`
}

// RecurringService manages recurring templates and materializes their
// occurrences into transactions.
type RecurringService struct {
	Deps
	// CatchUpLimit bounds the occurrences handled per template per Tick.
	CatchUpLimit int
	// Now returns the current time; today is its UTC calendar day.
	Now func() time.Time
}

func NewRecurringService(d Deps) *RecurringService {
	return &RecurringService{Deps: d, CatchUpLimit: DefaultCatchUpLimit, Now: time.Now}
}

func (s *RecurringService) today() time.Time {
	return recurrence.Date(s.Now())
}

func (s *RecurringService) build(tx *gorm.DB, company uuid.UUID, in RecurringInput, r *models.RecurringTransaction) (*recurrence.Rule, error) {
	v := validation.Violations{}
	validation.OneOf("baseTransactionType", in.Type, CategoryTypes, v)
	validation.PositiveDecimal("baseAmount", in.Amount, v)
	validation.MaxLength("description", strings.TrimSpace(in.Description), 255, v)
	validation.RangeInt("daysBeforeDueToCreate", in.DaysBeforeDueToCreate, 0, MaxDaysBeforeDue, v)
	accountID := validation.UUID("accountId", in.AccountID, v)
	categoryID := validation.OptionalUUID("categoryId", in.CategoryID, v)
	contactID := validation.OptionalUUID("contactId", in.ContactID, v)
	start := validation.Date("startDate", in.StartDate, v)
	end := validation.OptionalDate("endDate", in.EndDate, v)
	if end != nil && !start.IsZero() && end.Before(start) {
		v.Add("endDate", "end_before_start")
	}

	var rule *recurrence.Rule
	if strings.TrimSpace(in.RecurrenceRule) == "" {
		v.Add("recurrenceRule", "required")
	} else if !start.IsZero() {
		var err error
		if rule, err = recurrence.Parse(in.RecurrenceRule, start); err != nil {
			v.Add("recurrenceRule", "invalid_rule")
		}
	}

	typ := models.TransactionType(in.Type)
	account, err := checkRefs(tx, company, accountID, categoryID, contactID, typ, v)
	if err != nil {
		return nil, err
	}
	if err := invalid(v); err != nil {
		return nil, err
	}

	r.CompanyID = company
	r.AccountID = accountID
	r.CurrencyCode = account.CurrencyCode
	r.CategoryID = categoryID
	r.ContactID = contactID
	r.Description = strings.TrimSpace(in.Description)
	r.BaseTransactionType = typ
	r.BaseAmount = in.Amount
	r.RecurrenceRule = rule.String()
	r.StartDate = start
	r.EndDate = end
	r.AutoCreateTransaction = in.AutoCreateTransaction
	r.DaysBeforeDueToCreate = in.DaysBeforeDueToCreate
	return rule, nil
}

// firstPending returns the first occurrence of r not yet materialized:
// the one after the latest materialized occurrence, or the rule's first.
func firstPending(tx *gorm.DB, r *models.RecurringTransaction, rule *recurrence.Rule) (time.Time, bool, error) {
	var latest models.Transaction
	err := tx.Where("recurring_transaction_id = ? AND occurrence_date IS NOT NULL", r.ID).
		Order("occurrence_date DESC").
		Take(&latest).Error
	switch {
	case notFound(err):
		next, ok := rule.First()
		return next, ok, nil
	case err != nil:
		return time.Time{}, false, fmt.Errorf("latest occurrence: %w", err)
	}
	next, ok := rule.Next(*latest.OccurrenceDate)
	return next, ok, nil
}

// schedule sets NextDueDate to next, or finishes r when there is none.
func schedule(r *models.RecurringTransaction, next time.Time, ok bool) {
	if !ok || recurrence.Ended(next, r.EndDate) {
		r.Status = models.RecurringFinished
		r.NextDueDate = nil
		return
	}
	r.NextDueDate = &next
}

// List returns the tenant's templates, optionally only those with status.
func (s *RecurringService) List(ctx context.Context, tc tenant.Context, status models.RecurringStatus) ([]models.RecurringTransaction, error) {
	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	q := owned(s.DB.WithContext(ctx), company)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.RecurringTransaction
	if err := q.Order("next_due_date IS NULL, next_due_date, description").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list recurring: %w", err)
	}
	return out, nil
}

func (s *RecurringService) Get(ctx context.Context, tc tenant.Context, rawID string) (*models.RecurringTransaction, error) {
	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	var r models.RecurringTransaction
	if err := findOwned(s.DB.WithContext(ctx), company, id, &r); err != nil {
		return nil, dbError(err, "get recurring", "", "")
	}
	return &r, nil
}

// Create stores an active template whose next due date is the first
// occurrence of its rule on or after the start date.
func (s *RecurringService) Create(ctx context.Context, tc tenant.Context, in RecurringInput) (r *models.RecurringTransaction, err error) {
	defer func() { s.done(ctx, "recurring", "create", err, logrus.Fields{"user_id": tc.UserID, "rule": in.RecurrenceRule}) }()

	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	r = &models.RecurringTransaction{Status: models.RecurringActive}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rule, err := s.build(tx, company, in, r)
		if err != nil {
			return err
		}
		next, ok := rule.First()
		if !ok || recurrence.Ended(next, r.EndDate) {
			return fieldError("recurrenceRule", "no_occurrence")
		}
		r.NextDueDate = &next
		return dbError(tx.Create(r).Error, "create recurring", "", "")
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// lock loads the template id of company for update.
func lock(tx *gorm.DB, company, id uuid.UUID, r *models.RecurringTransaction) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("company_id = ?", company).First(r, "id = ?", id).Error
	return dbError(err, "load recurring", "", "")
}

// Update edits a template that is not finished. The next due date is
// recomputed from the last materialized occurrence under the new rule.
func (s *RecurringService) Update(ctx context.Context, tc tenant.Context, rawID string, in RecurringInput) (r *models.RecurringTransaction, err error) {
	defer func() { s.done(ctx, "recurring", "update", err, logrus.Fields{"user_id": tc.UserID, "recurring_id": rawID}) }()

	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	r = &models.RecurringTransaction{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lock(tx, company, id, r); err != nil {
			return err
		}
		if r.Status == models.RecurringFinished {
			return &ConflictError{Field: "status", Code: CodeRecurringFinished}
		}
		prevRule, prevStart, prevEnd, prevNext := r.RecurrenceRule, r.StartDate, r.EndDate, r.NextDueDate
		rule, err := s.build(tx, company, in, r)
		if err != nil {
			return err
		}
		if r.RecurrenceRule != prevRule || !r.StartDate.Equal(prevStart) || !sameDate(r.EndDate, prevEnd) {
			next, ok, err := firstPending(tx, r, rule)
			if err != nil {
				return err
			}
			if ok && r.Status == models.RecurringActive {
				// An active template never moves its due date backwards.
				floor := s.today()
				if prevNext != nil && prevNext.After(floor) {
					floor = *prevNext
				}
				if next.Before(floor) {
					next, ok = rule.OnOrAfter(floor)
				}
			}
			schedule(r, next, ok)
		}
		return dbError(tx.Save(r).Error, "update recurring", "", "")
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// transition moves a template through its state machine inside a
// transaction. apply mutates the locked row.
func (s *RecurringService) transition(ctx context.Context, tc tenant.Context, rawID, op string, apply func(r *models.RecurringTransaction) error) (r *models.RecurringTransaction, err error) {
	defer func() { s.done(ctx, "recurring", op, err, logrus.Fields{"user_id": tc.UserID, "recurring_id": rawID}) }()

	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	r = &models.RecurringTransaction{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lock(tx, company, id, r); err != nil {
			return err
		}
		if err := apply(r); err != nil {
			return err
		}
		return dbError(tx.Model(r).Select("status", "next_due_date").Updates(r).Error, op+" recurring", "", "")
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Pause freezes an active template; its next due date is kept.
func (s *RecurringService) Pause(ctx context.Context, tc tenant.Context, rawID string) (*models.RecurringTransaction, error) {
	return s.transition(ctx, tc, rawID, "pause", func(r *models.RecurringTransaction) error {
		if r.Status != models.RecurringActive {
			return &ConflictError{Field: "status", Code: CodeInvalidTransition}
		}
		r.Status = models.RecurringPaused
		return nil
	})
}

// Resume reactivates a paused template. A next due date left in the past
// moves to the first occurrence on or after today; occurrences skipped
// while paused are not materialized.
func (s *RecurringService) Resume(ctx context.Context, tc tenant.Context, rawID string) (*models.RecurringTransaction, error) {
	today := s.today()
	return s.transition(ctx, tc, rawID, "resume", func(r *models.RecurringTransaction) error {
		if r.Status != models.RecurringPaused {
			return &ConflictError{Field: "status", Code: CodeInvalidTransition}
		}
		r.Status = models.RecurringActive
		if r.NextDueDate != nil && !r.NextDueDate.Before(today) {
			return nil
		}
		rule, err := recurrence.Parse(r.RecurrenceRule, r.StartDate)
		if err != nil {
			return fmt.Errorf("parse stored rule: %w", err)
		}
		next, ok := rule.OnOrAfter(today)
		schedule(r, next, ok)
		return nil
	})
}

// Finish ends a template for good.
func (s *RecurringService) Finish(ctx context.Context, tc tenant.Context, rawID string) (*models.RecurringTransaction, error) {
	return s.transition(ctx, tc, rawID, "finish", func(r *models.RecurringTransaction) error {
		if r.Status == models.RecurringFinished {
			return &ConflictError{Field: "status", Code: CodeInvalidTransition}
		}
		r.Status = models.RecurringFinished
		r.NextDueDate = nil
		return nil
	})
}

// Delete removes a template. Transactions it produced are kept and unlinked.
func (s *RecurringService) Delete(ctx context.Context, tc tenant.Context, rawID string) (err error) {
	defer func() { s.done(ctx, "recurring", "delete", err, logrus.Fields{"user_id": tc.UserID, "recurring_id": rawID}) }()

	company, err := tc.Company()
	if err != nil {
		return err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.RecurringTransaction
		if err := lock(tx, company, id, &r); err != nil {
			return err
		}
		if err := owned(tx.Model(&models.Transaction{}), company).
			Where("recurring_transaction_id = ?", id).
			Update("recurring_transaction_id", nil).Error; err != nil {
			return fmt.Errorf("unlink transactions: %w", err)
		}
		return dbError(tx.Delete(&models.RecurringTransaction{}, "id = ?", id).Error, "delete recurring", "", "")
	})
}

// Tick materializes the due occurrences of every active template and
// advances their next due date. A template is due when its next due date
// is on or before today plus its days-before-due offset. Each template is
// processed in its own transaction; a failing template is logged and
// skipped. Running Tick twice for the same day creates nothing new.
func (s *RecurringService) Tick(ctx context.Context, today time.Time) (TickReport, error) {
	today = recurrence.Date(today)
	var rep TickReport
	var ids []uuid.UUID
	err := s.DB.WithContext(ctx).Model(&models.RecurringTransaction{}).
		Where("status = ? AND next_due_date IS NOT NULL AND next_due_date <= ?", models.RecurringActive, today.AddDate(0, 0, MaxDaysBeforeDue)).
		Order("next_due_date").
		Pluck("id", &ids).Error
	if err != nil {
		return rep, fmt.Errorf("select due templates: %w", err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Scanned++
		created, finished, err := s.tickOne(ctx, id, today)
		if err != nil {
			rep.Failed++
			s.Log.WithContext(ctx).WithError(err).WithField("recurring_id", id).Error("recurring tick failed")
			continue
		}
		rep.Created += created
		if finished {
			rep.Finished++
		}
	}
	s.Log.WithContext(ctx).WithFields(logrus.Fields{
		"today":    today.Format(time.DateOnly),
		"scanned":  rep.Scanned,
		"created":  rep.Created,
		"finished": rep.Finished,
		"failed":   rep.Failed,
	}).Info("recurring tick done")
	return rep, nil
}

var errSkip = errors.New("template no longer due")

func (s *RecurringService) tickOne(ctx context.Context, id uuid.UUID, today time.Time) (created int, finished bool, err error) {
	limit := s.CatchUpLimit
	if limit <= 0 {
		limit = DefaultCatchUpLimit
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.RecurringTransaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&r, "id = ?", id).Error; err != nil {
			return fmt.Errorf("lock template: %w", err)
		}
		if r.Status != models.RecurringActive || r.NextDueDate == nil {
			return errSkip
		}
		horizon := today.AddDate(0, 0, r.DaysBeforeDueToCreate)
		if r.NextDueDate.After(horizon) {
			return errSkip
		}
		rule, err := recurrence.Parse(r.RecurrenceRule, r.StartDate)
		if err != nil {
			return fmt.Errorf("parse rule: %w", err)
		}

		occ, ok := recurrence.Date(*r.NextDueDate), true
		for n := 0; ok && !occ.After(horizon) && n < limit; n++ {
			if recurrence.Ended(occ, r.EndDate) {
				break
			}
			if r.AutoCreateTransaction {
				c, err := materialize(tx, &r, occ, today)
				if err != nil {
					return err
				}
				created += c
			}
			occ, ok = rule.Next(occ)
		}
		schedule(&r, occ, ok)
		finished = r.Status == models.RecurringFinished
		return tx.Model(&r).Select("status", "next_due_date").Updates(&r).Error
	})
	if errors.Is(err, errSkip) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return created, finished, nil
}

// materialize inserts the transaction of occurrence occ unless it already
// exists. It returns the number of rows created.
func materialize(tx *gorm.DB, r *models.RecurringTransaction, occ, today time.Time) (int, error) {
	status := models.StatusPending
	if occ.After(today) {
		status = models.StatusScheduled
	}
	rid, day, due := r.ID, occ, occ
	t := models.Transaction{
		CompanyID:              r.CompanyID,
		AccountID:              r.AccountID,
		CurrencyCode:           r.CurrencyCode,
		CategoryID:             r.CategoryID,
		ContactID:              r.ContactID,
		Type:                   r.BaseTransactionType,
		Status:                 status,
		Amount:                 r.BaseAmount,
		Description:            r.Description,
		TransactionDate:        occ,
		DueDate:                &due,
		RecurringTransactionID: &rid,
		OccurrenceDate:         &day,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&t)
	if res.Error != nil {
		return 0, fmt.Errorf("materialize %s: %w", occ.Format(time.DateOnly), res.Error)
	}
	return int(res.RowsAffected), nil
}
