package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
)

func newTemplate(name string, elements ...models.Element) *models.QuotationTemplate {
	return &models.QuotationTemplate{Name: name, Elements: elements}
}

func countDefaults(t *testing.T, svc *TemplateService) int64 {
	t.Helper()
	var n int64
	require.NoError(t, svc.db.Model(&models.QuotationTemplate{}).Where("is_default = ?", true).Count(&n).Error)
	return n
}

func TestTemplateService_CreateAndGet(t *testing.T) {
	svc := NewTemplateService(openTestDB(t))

	tpl := newTemplate("Standard", models.Element{Type: "header"}, models.Element{Type: "items_table"})
	tpl.Version = 7
	warnings, err := svc.Create(tpl)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.NotEmpty(t, tpl.ID)
	assert.Equal(t, 1, tpl.Version)

	got, err := svc.Get(tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Standard", got.Name)
	assert.Equal(t, "classic", got.Theme)
	assert.True(t, got.IsActive)
	require.Len(t, got.Elements, 2)
	assert.Equal(t, "items_table", got.Elements[1].Type)

	_, err = svc.Get("missing")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestTemplateService_CreateValidation(t *testing.T) {
	svc := NewTemplateService(openTestDB(t))

	_, err := svc.Create(newTemplate("  "))
	assert.ErrorIs(t, err, ErrTemplateInvalid)

	_, err = svc.Create(newTemplate("Bad", models.Element{Type: ""}))
	var verr *TemplateValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.Problems)

	warnings, err := svc.Create(newTemplate("Odd", models.Element{Type: "hologram"}, models.Element{Type: "table"}))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "hologram")
}

func TestTemplateService_UpdateBumpsVersion(t *testing.T) {
	svc := NewTemplateService(openTestDB(t))
	tpl := newTemplate("Standard", models.Element{Type: "header"})
	_, err := svc.Create(tpl)
	require.NoError(t, err)

	name := "Renamed"
	elements := []models.Element{{Type: "header"}, {Type: "terms"}}
	updated, _, err := svc.Update(tpl.ID, TemplatePatch{Name: &name, Elements: &elements})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 2, updated.Version)
	assert.Len(t, updated.Elements, 2)

	updated, _, err = svc.Update(tpl.ID, TemplatePatch{Styles: map[string]interface{}{"primaryColor": "#000"}})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Version)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "#000", updated.Styles["primaryColor"])

	empty := ""
	_, _, err = svc.Update(tpl.ID, TemplatePatch{Name: &empty})
	assert.ErrorIs(t, err, ErrTemplateInvalid)

	_, _, err = svc.Update("missing", TemplatePatch{})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestTemplateService_SetDefaultLeavesExactlyOne(t *testing.T) {
	svc := NewTemplateService(openTestDB(t))

	a := newTemplate("A")
	a.IsDefault = true
	_, err := svc.Create(a)
	require.NoError(t, err)
	b := newTemplate("B")
	b.IsDefault = true
	_, err = svc.Create(b)
	require.NoError(t, err)
	c := newTemplate("C")
	_, err = svc.Create(c)
	require.NoError(t, err)

	assert.Equal(t, int64(1), countDefaults(t, svc))

	require.NoError(t, svc.SetDefault(c.ID))
	assert.Equal(t, int64(1), countDefaults(t, svc))
	def, err := svc.GetDefault()
	require.NoError(t, err)
	assert.Equal(t, c.ID, def.ID)

	require.NoError(t, svc.SetDefault(a.ID))
	require.NoError(t, svc.SetDefault(a.ID))
	assert.Equal(t, int64(1), countDefaults(t, svc))

	list, err := svc.List(false)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, a.ID, list[0].ID)

	assert.ErrorIs(t, svc.SetDefault("missing"), ErrTemplateNotFound)
}

func TestTemplateService_ConcurrentSetDefault(t *testing.T) {
	svc := NewTemplateService(openTestDB(t))

	ids := make([]string, 6)
	for i := range ids {
		tpl := newTemplate(fmt.Sprintf("T%d", i))
		tpl.IsDefault = i == 0
		_, err := svc.Create(tpl)
		require.NoError(t, err)
		ids[i] = tpl.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for round := 0; round < 3; round++ {
		for i, id := range ids {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				if err := svc.SetDefault(id); err != nil {
					errs[i] = err
				}
			}(i, id)
		}
		wg.Wait()
	}

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), countDefaults(t, svc))
}

func TestTemplateService_IndexRejectsSecondDefault(t *testing.T) {
	svc := NewTemplateService(openTestDB(t))
	a := newTemplate("A")
	a.IsDefault = true
	_, err := svc.Create(a)
	require.NoError(t, err)
	assert.True(t, a.IsDefault)
	b := newTemplate("B")
	_, err = svc.Create(b)
	require.NoError(t, err)

	// a writer bypassing the service cannot flag a second default
	err = svc.db.Model(&models.QuotationTemplate{}).Where("id = ?", b.ID).Update("is_default", true).Error
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
	assert.Equal(t, int64(1), countDefaults(t, svc))

	// other rows stay free to be non-default
	assert.NoError(t, svc.db.Model(&models.QuotationTemplate{}).Where("id = ?", b.ID).Update("is_default", false).Error)
}

func TestTemplateService_DeleteIsSoft(t *testing.T) {
	svc := NewTemplateService(openTestDB(t))
	tpl := newTemplate("Gone")
	tpl.IsDefault = true
	_, err := svc.Create(tpl)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(tpl.ID))

	got, err := svc.Get(tpl.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.False(t, got.IsDefault)

	active, err := svc.List(false)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := svc.List(true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.ErrorIs(t, svc.SetDefault(tpl.ID), ErrTemplateInactive)
	_, err = svc.GetDefault()
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.ErrorIs(t, svc.Delete("missing"), ErrTemplateNotFound)
}

func TestTemplateService_GetDefaultFallsBackToActive(t *testing.T) {
	svc := NewTemplateService(openTestDB(t))
	tpl := newTemplate("Only")
	_, err := svc.Create(tpl)
	require.NoError(t, err)

	def, err := svc.GetDefault()
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, def.ID)
}

func TestTemplateService_Duplicate(t *testing.T) {
	svc := NewTemplateService(openTestDB(t))
	src := newTemplate("Standard", models.Element{Type: "header"})
	src.IsDefault = true
	_, err := svc.Create(src)
	require.NoError(t, err)
	name := "Standard"
	_, _, err = svc.Update(src.ID, TemplatePatch{Name: &name})
	require.NoError(t, err)

	dup, err := svc.Duplicate(src.ID)
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, dup.ID)
	assert.Equal(t, "Standard (Copy)", dup.Name)
	assert.False(t, dup.IsDefault)
	assert.Equal(t, 1, dup.Version)
	assert.Len(t, dup.Elements, 1)
	assert.Equal(t, int64(1), countDefaults(t, svc))
}
