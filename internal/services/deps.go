// Package services holds the business operations of the back-office.
// Every mutation validates its input, runs in a transaction when more than
// one row changes and reports failures using the types in errors.go.
package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/internal/metrics"
)

// RoleCache is notified when role assignments or permissions change.
type RoleCache interface {
	InvalidateUser(userID uuid.UUID)
	InvalidateAll()
}

// Deps are the collaborators shared by every service.
// Metrics and Cache may be nil.
type Deps struct {
	DB      *gorm.DB
	Log     *logrus.Logger
	Metrics *metrics.Metrics
	Cache   RoleCache
}

func (d Deps) invalidateAll() {
	if d.Cache != nil {
		d.Cache.InvalidateAll()
	}
}

func (d Deps) invalidateUser(id uuid.UUID) {
	if d.Cache != nil {
		d.Cache.InvalidateUser(id)
	}
}

// done records the outcome of a mutation and logs unexpected failures in full.
func (d Deps) done(ctx context.Context, resource, op string, err error, fields logrus.Fields) {
	class := Classify(err)
	d.Metrics.ObserveMutation(resource, op, class)
	entry := d.Log.WithContext(ctx).WithFields(fields).WithFields(logrus.Fields{"resource": resource, "op": op})
	switch class {
	case ClassOK:
		entry.Info("mutation succeeded")
	case ClassUnexpected:
		entry.WithError(err).Error("mutation failed")
	default:
		entry.WithField("reason", err.Error()).Debug("mutation rejected")
	}
}

// parseID parses a path id, reporting malformed input as a validation error.
func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fieldError(field, "invalid_uuid")
	}
	return id, nil
}

// exists reports whether a row of model matches the conditions.
func exists(tx *gorm.DB, model any, query string, args ...any) (bool, error) {
	var n int64
	if err := tx.Model(model).Where(query, args...).Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// notFound reports whether err is a missing row.
func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
