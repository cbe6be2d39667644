package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (m ApiHandler) updatePrices(c *gin.Context) {
	if m.IngestService == nil {
		returnErrorJsonCode(fmt.Errorf("price ingestion needs a postgres source"), c, http.StatusBadRequest)
		return
	}

	err := m.IngestService.UpdateUniversePrices(c.Request.Context(), m.RunInput.Since)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	out := map[string]string{
		"message": "ok",
	}

	c.JSON(200, out)
}
