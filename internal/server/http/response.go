package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/omegacache/pkg/cache"
)

// ErrorResponse define la estructura estándar para las respuestas de error.
type ErrorResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// SendSuccess envía una respuesta exitosa con un payload de datos.
func SendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"data": data,
	})
}

// SendError envía una respuesta de error con un formato estandarizado.
func SendError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error": ErrorResponse{
			Message: message,
		},
	})
}

func SendBadRequest(c *gin.Context, message string) {
	SendError(c, http.StatusBadRequest, message)
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, message)
}

// StatusFor traduce el Kind de un error de la caché a un código HTTP.
func StatusFor(kind cache.Kind) int {
	switch kind {
	case cache.KindEncode, cache.KindDecode:
		return http.StatusUnprocessableEntity
	case cache.KindEngine:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// SendCacheError responde con el código que corresponde al Kind del error.
func SendCacheError(c *gin.Context, err error) {
	kind := cache.KindOf(err)
	c.JSON(StatusFor(kind), gin.H{
		"error": ErrorResponse{
			Message: err.Error(),
			Kind:    kind.String(),
		},
	})
}
