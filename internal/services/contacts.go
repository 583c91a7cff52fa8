package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/tenant"
	"github.com/diewo77/go-backoffice/validation"
)

const CodeContactNameTaken = "contact_name_taken"

// ContactInput is the payload of contact Create and Update.
type ContactInput struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
	Notes    string `json:"notes"`
}

func (in ContactInput) validate() error {
	v := validation.Violations{}
	validation.Length("name", in.Name, 2, 150, v)
	validation.OneOf("type", in.Type, models.ContactTypes, v)
	if strings.TrimSpace(in.Email) != "" {
		validation.Email("email", in.Email, v)
	}
	validation.MaxLength("phone", strings.TrimSpace(in.Phone), 30, v)
	validation.MaxLength("document", strings.TrimSpace(in.Document), 30, v)
	validation.MaxLength("notes", in.Notes, 2000, v)
	return invalid(v)
}

func (in ContactInput) apply(c *models.Contact) {
	c.Name = strings.TrimSpace(in.Name)
	c.Type = models.ContactType(in.Type)
	c.Email = strings.TrimSpace(in.Email)
	c.Phone = strings.TrimSpace(in.Phone)
	c.Document = strings.TrimSpace(in.Document)
	c.Notes = strings.TrimSpace(in.Notes)
}

// ContactService manages the counterparties of a tenant.
type ContactService struct {
	Deps
}

func NewContactService(d Deps) *ContactService {
	return &ContactService{Deps: d}
}

// List returns the tenant's contacts, optionally only those of type.
func (s *ContactService) List(ctx context.Context, tc tenant.Context, typ string) ([]models.Contact, error) {
	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	q := owned(s.DB.WithContext(ctx), company)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	var out []models.Contact
	if err := q.Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return out, nil
}

func (s *ContactService) Get(ctx context.Context, tc tenant.Context, rawID string) (*models.Contact, error) {
	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	var c models.Contact
	if err := findOwned(s.DB.WithContext(ctx), company, id, &c); err != nil {
		return nil, dbError(err, "get contact", "", "")
	}
	return &c, nil
}

// save inserts c when it has no id yet and updates it otherwise, after the
// (company, name, type) uniqueness check.
func (s *ContactService) save(tx *gorm.DB, c *models.Contact, company uuid.UUID) error {
	taken, err := nameTaken(tx, &models.Contact{}, company, c.Name, string(c.Type), c.ID)
	if err != nil {
		return fmt.Errorf("check contact name: %w", err)
	}
	if taken {
		return &ConflictError{Field: "name", Code: CodeContactNameTaken}
	}
	if c.ID == uuid.Nil {
		return dbError(tx.Create(c).Error, "create contact", "name", CodeContactNameTaken)
	}
	return dbError(tx.Save(c).Error, "update contact", "name", CodeContactNameTaken)
}

func (s *ContactService) Create(ctx context.Context, tc tenant.Context, in ContactInput) (c *models.Contact, err error) {
	defer func() { s.done(ctx, "contact", "create", err, logrus.Fields{"user_id": tc.UserID, "name": in.Name}) }()

	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	c = &models.Contact{CompanyID: company}
	in.apply(c)
	if err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error { return s.save(tx, c, company) }); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ContactService) Update(ctx context.Context, tc tenant.Context, rawID string, in ContactInput) (c *models.Contact, err error) {
	defer func() { s.done(ctx, "contact", "update", err, logrus.Fields{"user_id": tc.UserID, "contact_id": rawID}) }()

	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	c = &models.Contact{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findOwned(tx, company, id, c); err != nil {
			return dbError(err, "load contact", "", "")
		}
		in.apply(c)
		return s.save(tx, c, company)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a contact no transaction or template references.
func (s *ContactService) Delete(ctx context.Context, tc tenant.Context, rawID string) (err error) {
	defer func() { s.done(ctx, "contact", "delete", err, logrus.Fields{"user_id": tc.UserID, "contact_id": rawID}) }()

	company, err := tc.Company()
	if err != nil {
		return err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Contact
		if err := findOwned(tx, company, id, &c); err != nil {
			return dbError(err, "load contact", "", "")
		}
		n, err := countReferences(tx, company, "contact_id", id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &ReferentialError{Code: CodeContactInUse, Count: n}
		}
		return dbError(owned(tx, company).Delete(&models.Contact{}, "id = ?", id).Error, "delete contact", "", "")
	})
}
