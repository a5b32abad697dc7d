package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/config"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/database"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.Init(cfg.Debug, os.Stdout)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}
	fmt.Println("✓ Database migrated successfully")

	auth := services.NewAuthService(db, cfg)
	adminEmail := envOr("CRM_SEED_ADMIN_EMAIL", "admin@cranecrm.local")
	adminPassword := envOr("CRM_SEED_ADMIN_PASSWORD", "changeme123")
	if _, err := auth.Register(adminEmail, adminPassword, "Administrator", models.RoleAdmin); err != nil {
		if !errors.Is(err, services.ErrEmailTaken) {
			log.Fatal("Failed to seed admin:", err)
		}
		fmt.Printf("  Admin %s already exists\n", adminEmail)
	} else {
		fmt.Printf("✓ Created admin user: %s\n", adminEmail)
	}

	settings := services.NewSettingsService(db)
	company := []models.Setting{
		{Key: "company_name", Value: "ASP Cranes", Category: "company"},
		{Key: "company_address", Value: "Plot 12, Industrial Area, Pune", Category: "company"},
		{Key: "company_phone", Value: "+91 20 4000 1234", Category: "company"},
		{Key: "company_email", Value: "sales@aspcranes.example", Category: "company"},
		{Key: "company_gst", Value: "27AAACA1234A1Z5", Category: "company"},
	}
	for i := range company {
		if err := settings.Upsert(&company[i]); err != nil {
			log.Printf("Failed to seed setting %s: %v", company[i].Key, err)
		}
	}
	fmt.Printf("✓ Seeded %d company settings\n", len(company))

	templates := services.NewTemplateService(db)
	if _, err := templates.GetDefault(); err != nil {
		tpl := standardTemplate()
		if _, err := templates.Create(tpl); err != nil {
			log.Fatal("Failed to seed template:", err)
		}
		fmt.Printf("✓ Created default template: %s\n", tpl.Name)
	} else {
		fmt.Println("  Default template already exists")
	}

	if err := seedQuotation(db); err != nil {
		log.Fatal("Failed to seed quotation:", err)
	}

	notifications := services.NewNotificationService(db, nil, nil, nil)
	if err := notifications.InitDefaults(); err != nil {
		log.Fatal("Failed to seed notification defaults:", err)
	}
	fmt.Println("✓ Notification rules and templates ensured")

	fmt.Println("\n✓ Database seeded successfully!")
}

func standardTemplate() *models.QuotationTemplate {
	return &models.QuotationTemplate{
		Name:        "Standard Crane Rental",
		Description: "Header, parties, priced items and rental terms",
		IsDefault:   true,
		Elements: []models.Element{
			{Type: "header", Content: map[string]interface{}{"title": "QUOTATION", "subtitle": "{{quotation.number}}"}},
			{Type: "company_info"},
			{Type: "client_info"},
			{Type: "quotation_info"},
			{Type: "items_table"},
			{Type: "totals"},
			{Type: "terms", Content: map[string]interface{}{
				"title": "Terms & Conditions",
				"items": []interface{}{
					"Mobilisation and demobilisation charged separately.",
					"Minimum billing of 8 hours per day.",
					"Fuel and operator food at client's cost.",
				},
			}},
			{Type: "signature", Content: map[string]interface{}{"label": "For {{company.name}}"}},
			{Type: "footer", Content: map[string]interface{}{"text": "Thank you for your business."}},
		},
	}
}

func seedQuotation(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Quotation{}).Where("number = ?", "Q-DEMO-001").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		fmt.Println("  Demo quotation already exists")
		return nil
	}

	validUntil := time.Now().AddDate(0, 0, 30)
	q := &models.Quotation{
		Number: "Q-DEMO-001",
		Customer: &models.Customer{
			Name:    "Ravi Kumar",
			Company: "Metro Infra Projects",
			Email:   "ravi@metroinfra.example",
			Phone:   "+919876543210",
			Address: "Sector 5, Navi Mumbai",
		},
		Items: []models.QuotationItem{
			{Position: 1, Description: "100T mobile crane", Quantity: 5, Unit: "day", Rate: 45000},
			{Position: 2, Description: "Certified operator", Quantity: 5, Unit: "day", Rate: 3000},
			{Position: 3, Description: "Mobilisation", Quantity: 1, Unit: "trip", Rate: 25000},
		},
		TaxRate:    18,
		ValidUntil: &validUntil,
		Terms:      "50% advance, balance on completion.",
	}
	if err := db.Create(q).Error; err != nil {
		return err
	}
	fmt.Printf("✓ Created demo quotation: %s\n", q.Number)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
