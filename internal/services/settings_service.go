package services

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
)

// SettingsService reads and writes key/value settings grouped by category.
type SettingsService struct {
	db *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// All returns every setting as key → value.
func (s *SettingsService) All() (map[string]string, error) {
	var settings []models.Setting
	if err := s.db.Order("key").Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	out := make(map[string]string, len(settings))
	for _, st := range settings {
		out[st.Key] = st.Value
	}
	return out, nil
}

// Category returns the settings of one category as key → value.
func (s *SettingsService) Category(category string) (map[string]string, error) {
	var settings []models.Setting
	if err := s.db.Where("category = ?", category).Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("load %s settings: %w", category, err)
	}
	out := make(map[string]string, len(settings))
	for _, st := range settings {
		out[st.Key] = st.Value
	}
	return out, nil
}

// Upsert creates or updates a setting by key.
func (s *SettingsService) Upsert(setting *models.Setting) error {
	if setting.Type == "" {
		setting.Type = "string"
	}
	assign := models.Setting{Key: setting.Key, Value: setting.Value, Type: setting.Type, Category: setting.Category}
	return s.db.Where(models.Setting{Key: setting.Key}).Assign(assign).FirstOrCreate(setting).Error
}

// CompanyProfile returns the company category with the company_ prefix
// stripped (company_name → name), ready for template placeholders.
func (s *SettingsService) CompanyProfile() (map[string]interface{}, error) {
	settings, err := s.Category("company")
	if err != nil {
		return nil, err
	}
	profile := make(map[string]interface{}, len(settings))
	for k, v := range settings {
		profile[strings.TrimPrefix(k, "company_")] = v
	}
	return profile, nil
}
