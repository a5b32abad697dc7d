package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateInactive = errors.New("template is inactive")
	ErrTemplateInvalid  = errors.New("invalid template")
	// ErrDefaultConflict means another writer flagged a default concurrently.
	ErrDefaultConflict = errors.New("another template became default concurrently")
)

// defaultLockKey serialises default flips on postgres. The partial unique
// index on is_default backs it up for writers outside this service.
const defaultLockKey = 72_000_001

// TemplatePatch carries the builder fields an update replaces. Nil fields
// are left untouched.
type TemplatePatch struct {
	Name        *string                `json:"name"`
	Description *string                `json:"description"`
	Theme       *string                `json:"theme"`
	Elements    *[]models.Element      `json:"elements"`
	Styles      map[string]interface{} `json:"styles"`
	Layout      map[string]interface{} `json:"layout"`
}

// TemplateService is the quotation template store.
type TemplateService struct {
	db *gorm.DB
}

func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{db: db}
}

// Create validates and stores a new template at version 1. A template
// created as default takes the flag from every other row in the same
// transaction.
func (s *TemplateService) Create(tpl *models.QuotationTemplate) ([]string, error) {
	warnings, err := ValidateTemplate(tpl)
	if err != nil {
		return nil, err
	}
	tpl.ID = ""
	tpl.Version = 1
	tpl.IsActive = true
	if tpl.Theme == "" {
		tpl.Theme = "classic"
	}

	wantDefault := tpl.IsDefault
	tpl.IsDefault = false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tpl).Error; err != nil {
			return fmt.Errorf("create template: %w", err)
		}
		if wantDefault {
			return makeDefault(tx, tpl.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	tpl.IsDefault = wantDefault
	logger.Component("templates").WithField("template_id", tpl.ID).Info("template created")
	return warnings, nil
}

// Get returns a template by id whether or not it is active.
func (s *TemplateService) Get(id string) (*models.QuotationTemplate, error) {
	var tpl models.QuotationTemplate
	if err := s.db.First(&tpl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

// List returns templates with the default first, then most recently updated.
func (s *TemplateService) List(includeInactive bool) ([]models.QuotationTemplate, error) {
	var list []models.QuotationTemplate
	q := s.db.Order("is_default desc").Order("updated_at desc")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Update applies patch and bumps the version by one.
func (s *TemplateService) Update(id string, patch TemplatePatch) (*models.QuotationTemplate, []string, error) {
	tpl, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if patch.Name != nil {
		tpl.Name = *patch.Name
	}
	if patch.Description != nil {
		tpl.Description = *patch.Description
	}
	if patch.Theme != nil {
		tpl.Theme = *patch.Theme
	}
	if patch.Elements != nil {
		tpl.Elements = datatypes.JSONSlice[models.Element](*patch.Elements)
	}
	if patch.Styles != nil {
		tpl.Styles = patch.Styles
	}
	if patch.Layout != nil {
		tpl.Layout = patch.Layout
	}

	warnings, err := ValidateTemplate(tpl)
	if err != nil {
		return nil, nil, err
	}

	err = s.db.Model(&models.QuotationTemplate{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":        tpl.Name,
		"description": tpl.Description,
		"theme":       tpl.Theme,
		"elements":    tpl.Elements,
		"styles":      tpl.Styles,
		"layout":      tpl.Layout,
		"version":     gorm.Expr("version + ?", 1),
	}).Error
	if err != nil {
		return nil, nil, fmt.Errorf("update template: %w", err)
	}
	updated, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	return updated, warnings, nil
}

// Delete deactivates a template. Rows are never removed so printed
// quotations can still be traced back to their layout.
func (s *TemplateService) Delete(id string) error {
	res := s.db.Model(&models.QuotationTemplate{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_active":  false,
		"is_default": false,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// SetDefault makes id the only default template.
func (s *TemplateService) SetDefault(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var tpl models.QuotationTemplate
		if err := tx.First(&tpl, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTemplateNotFound
			}
			return err
		}
		if !tpl.IsActive {
			return ErrTemplateInactive
		}
		return makeDefault(tx, id)
	})
}

// makeDefault clears every other default and flags id. On postgres the
// advisory lock orders concurrent flips; SQLite already serialises writers.
func makeDefault(tx *gorm.DB, id string) error {
	if tx.Dialector.Name() == "postgres" {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", defaultLockKey).Error; err != nil {
			return fmt.Errorf("lock default templates: %w", err)
		}
	}
	err := tx.Model(&models.QuotationTemplate{}).
		Where("is_default = ? AND id <> ?", true, id).
		Update("is_default", false).Error
	if err != nil {
		return fmt.Errorf("clear default templates: %w", err)
	}
	err = tx.Model(&models.QuotationTemplate{}).Where("id = ?", id).Update("is_default", true).Error
	if isUniqueViolation(err) {
		return ErrDefaultConflict
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

// GetDefault returns the default template, or the most recently updated
// active template when none is flagged.
func (s *TemplateService) GetDefault() (*models.QuotationTemplate, error) {
	var tpl models.QuotationTemplate
	err := s.db.Where("is_default = ? AND is_active = ?", true, true).First(&tpl).Error
	if err == nil {
		return &tpl, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	err = s.db.Where("is_active = ?", true).Order("updated_at desc").First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// Duplicate copies a template as a new, non-default version 1 row.
func (s *TemplateService) Duplicate(id string) (*models.QuotationTemplate, error) {
	src, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	elements := make([]models.Element, len(src.Elements))
	copy(elements, src.Elements)
	dup := &models.QuotationTemplate{
		Name:        src.Name + " (Copy)",
		Description: src.Description,
		Theme:       src.Theme,
		Elements:    elements,
		Styles:      src.Styles,
		Layout:      src.Layout,
		CreatedBy:   src.CreatedBy,
	}
	if _, err := s.Create(dup); err != nil {
		return nil, err
	}
	return dup, nil
}
