package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/models"
)

// StoreResponse represents a store in API responses
type StoreResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

func (s *Server) listStores(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	stores := []models.Store{}
	if len(sessionData.StoreIDs) > 0 {
		if err := s.db.Where("id IN ?", sessionData.StoreIDs).Order("name ASC").Find(&stores).Error; err != nil {
			s.logger.Error().Err(err).Msg("Failed to list stores")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}

	resp := make([]StoreResponse, len(stores))
	for i, st := range stores {
		resp[i] = StoreResponse{ID: st.ID, Name: st.Name, Address: st.Address}
	}

	c.JSON(http.StatusOK, gin.H{"stores": resp})
}

// getStoreResource returns every record of one resource in a store. The
// caller must operate on the store and hold "<resource>:read".
func (s *Server) getStoreResource(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	storeID := c.Param("id")
	resource := c.Param("resource")

	var store models.Store
	if err := models.FindByID(s.db, storeID, &store); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Store not found"})
			return
		}
		s.logger.Error().Err(err).Str("store_id", storeID).Msg("Failed to find store")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !sessionData.InStore(store.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this store"})
		return
	}

	if !sessionData.Can(resource + ":read") {
		s.logger.Debug().
			Str("user_id", sessionData.UserID).
			Str("resource", resource).
			Msg("Missing read permission")
		c.JSON(http.StatusForbidden, gin.H{"error": "Missing permission " + resource + ":read"})
		return
	}

	var records []models.Record
	if err := s.db.Where("store_id = ? AND resource = ?", store.ID, resource).
		Order("created_at ASC").Find(&records).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	docs := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		if !json.Valid([]byte(r.Data)) {
			s.logger.Warn().Str("record_id", r.ID).Msg("Skipping record with invalid JSON")
			continue
		}
		docs = append(docs, json.RawMessage(r.Data))
	}

	c.JSON(http.StatusOK, docs)
}
