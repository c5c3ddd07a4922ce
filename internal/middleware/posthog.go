package middleware

import (
	"net/http"
	"strings"

	"github.com/SscSPs/geexpress_backend/internal/utils"
	"github.com/gin-gonic/gin"
)

const anonymousDistinctID = "anonymous"

// routeEvents names the business events worth a readable label in analytics.
// Other routes fall back to an event derived from the route template.
var routeEvents = map[string]string{
	"POST /api/v1/auth/login":                               "user_logged_in",
	"POST /api/v1/deliveries":                               "delivery_created",
	"PUT /api/v1/deliveries/:id/assign":                     "delivery_assigned",
	"PUT /api/v1/deliveries/:id/reassign":                   "delivery_reassigned",
	"PUT /api/v1/deliveries/:id/start":                      "delivery_started",
	"PUT /api/v1/deliveries/:id/cancel":                     "delivery_cancelled",
	"PUT /api/v1/deliveries/:id/packages/:packageId/status": "package_status_updated",
	"POST /api/v1/deliveries/:id/receipt":                   "transfer_receipt_uploaded",
	"POST /api/v1/deliveries/:id/issues":                    "delivery_issue_reported",
	"POST /api/v1/reconciliation/request":                   "reconciliation_requested",
	"POST /api/v1/settlements/drivers/:driverId/settle":     "courier_settled",
	"POST /api/v1/payroll/drivers/:driverId/pay":            "salary_paid",
	"GET /api/v1/public/tracking/:trackingNumber":           "package_tracked_public",
	"GET /api/v1/tracking/:trackingNumber":                  "package_tracked",
}

// skippedPrefixes are never tracked.
var skippedPrefixes = []string{"/health", "/swagger"}

func skipTracking(path string) bool {
	for _, p := range skippedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func eventName(method, route string) string {
	if name, ok := routeEvents[method+" "+route]; ok {
		return name
	}
	name := strings.TrimPrefix(route, "/api/v1/")
	name = strings.NewReplacer("/", "_", ":", "").Replace(name)
	return strings.ToLower(method) + "_" + name
}

// PosthogMiddleware reports successful API calls to PostHog once the handler
// has run. Authenticated calls are keyed by user id; public tracking lookups
// are reported anonymously.
func PosthogMiddleware(posthogClient *utils.PosthogClientWrapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !posthogClient.IsInitialized() || skipTracking(c.Request.URL.Path) {
			c.Next()
			return
		}

		c.Next()

		route := c.FullPath()
		if route == "" || len(c.Errors) > 0 || c.Writer.Status() >= http.StatusBadRequest {
			return
		}

		distinctID := anonymousDistinctID
		props := map[string]any{
			"method":      c.Request.Method,
			"route":       route,
			"status_code": c.Writer.Status(),
		}
		if caller, ok := GetCallerFromContext(c); ok {
			distinctID = caller.UserID
			props["role"] = string(caller.Role)
		}
		for _, p := range c.Params {
			props[p.Key] = p.Value
		}

		posthogClient.Enqueue(distinctID, eventName(c.Request.Method, route), props)
	}
}
