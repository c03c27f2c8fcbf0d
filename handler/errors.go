package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"foodshare-api/middleware"
	"foodshare-api/model"

	"github.com/gin-gonic/gin"
)

// respondError maps an error kind onto a status code and writes {"error": msg}.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "Internal server error"

	switch {
	case errors.Is(err, model.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, model.ErrInvalidOperation):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, model.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, model.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, model.ErrStoreUnavailable):
		status, msg = http.StatusServiceUnavailable, "Service temporarily unavailable, please retry"
	}

	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// actor returns the authenticated caller or writes 401.
func actor(c *gin.Context) (model.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
	return identity, ok
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalidQuery(key)
	}
	return n, nil
}

func queryFloat(c *gin.Context, key string) (float64, bool, error) {
	v := c.Query(key)
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, invalidQuery(key)
	}
	return f, true, nil
}

func invalidQuery(key string) error {
	return fmt.Errorf("%w: invalid query parameter %q", model.ErrValidation, key)
}
