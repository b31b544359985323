package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/ineyio/sentimentgate/storage/memory"
)

// ObjectRoutes mounts the in-process object store used when no bucket is
// configured. Uploads are authorized by the URL signature, not by a bearer
// credential.
type ObjectRoutes struct {
	store *memory.Store
}

func NewObjectRoutes(store *memory.Store) *ObjectRoutes {
	return &ObjectRoutes{store: store}
}

func (o *ObjectRoutes) RegisterRoutes(s *echo.Echo) {
	s.PUT(memory.PathPrefix+"*", echo.WrapHandler(o.store.Handler()))
}
