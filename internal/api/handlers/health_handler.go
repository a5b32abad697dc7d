package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/version"
)

type healthResponse struct {
	version.Info
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HealthHandler reports service metadata and database reachability.
func HealthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			dbStatus = "unreachable"
		}
		code, status := http.StatusOK, "ok"
		if dbStatus != "ok" {
			code, status = http.StatusServiceUnavailable, "degraded"
		}
		c.JSON(code, healthResponse{Info: version.Get(), Status: status, Database: dbStatus})
	}
}
