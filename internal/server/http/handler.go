package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/omegacache/pkg/cache"
)

// maxBodyBytes limita el tamaño de un valor enviado por HTTP.
const maxBodyBytes = 8 << 20

// Columns resuelve el nombre de la URL a una columna configurada.
type Columns interface {
	Column(name string) (cache.Def, bool)
	All() []cache.Def
}

// CacheHandler expone el Engine por HTTP. Los valores viajan como JSON.
type CacheHandler struct {
	engine  *cache.Engine
	columns Columns
}

func NewCacheHandler(engine *cache.Engine, columns Columns) *CacheHandler {
	return &CacheHandler{engine: engine, columns: columns}
}

func (h *CacheHandler) column(c *gin.Context) (cache.Def, bool) {
	name := c.Param("column")
	col, ok := h.columns.Column(name)
	if !ok {
		SendNotFound(c, "unknown column "+name)
		return cache.Def{}, false
	}
	return col, true
}

// Put endpoint PUT /columns/:column/keys/:key
func (h *CacheHandler) Put(c *gin.Context) {
	col, ok := h.column(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		SendBadRequest(c, "could not read body")
		return
	}
	if len(body) > maxBodyBytes {
		SendError(c, http.StatusRequestEntityTooLarge, "value too large")
		return
	}

	var value interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&value); err != nil || dec.More() {
		SendBadRequest(c, "body must be a single JSON value")
		return
	}

	if err := cache.Insert(c.Request.Context(), h.engine, col, c.Param("key"), value); err != nil {
		SendCacheError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Get endpoint GET /columns/:column/keys/:key
func (h *CacheHandler) Get(c *gin.Context) {
	col, ok := h.column(c)
	if !ok {
		return
	}

	value, found, err := cache.Get[interface{}](c.Request.Context(), h.engine, col, c.Param("key"))
	if err != nil {
		SendCacheError(c, err)
		return
	}
	if !found {
		SendNotFound(c, "key not found")
		return
	}
	SendSuccess(c, http.StatusOK, value)
}

// DropColumn endpoint DELETE /columns/:column
func (h *CacheHandler) DropColumn(c *gin.Context) {
	col, ok := h.column(c)
	if !ok {
		return
	}

	if err := h.engine.TryDropColumn(c.Request.Context(), col); err != nil {
		SendCacheError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListColumns endpoint GET /columns
func (h *CacheHandler) ListColumns(c *gin.Context) {
	SendSuccess(c, http.StatusOK, h.columns.All())
}
