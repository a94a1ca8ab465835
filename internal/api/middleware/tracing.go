package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// Tracing returns a gin middleware that opens a New Relic web transaction
// per request
func Tracing(app *newrelic.Application) gin.HandlerFunc {
	return nrgin.Middleware(app)
}
