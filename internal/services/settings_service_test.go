package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
)

func TestSettingsService_UpsertAndCompanyProfile(t *testing.T) {
	svc := NewSettingsService(openTestDB(t))

	require.NoError(t, svc.Upsert(&models.Setting{Key: "company_name", Value: "ASP Cranes", Category: "company"}))
	require.NoError(t, svc.Upsert(&models.Setting{Key: "company_gst_number", Value: "27AAAAA0000A1Z5", Category: "company"}))
	require.NoError(t, svc.Upsert(&models.Setting{Key: "company_name", Value: "ASP Cranes Pvt Ltd", Category: "company"}))
	require.NoError(t, svc.Upsert(&models.Setting{Key: "smtp_host", Value: "mail.local", Category: "smtp"}))

	all, err := svc.All()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	profile, err := svc.CompanyProfile()
	require.NoError(t, err)
	assert.Equal(t, "ASP Cranes Pvt Ltd", profile["name"])
	assert.Equal(t, "27AAAAA0000A1Z5", profile["gst_number"])
	assert.NotContains(t, profile, "host")
}
