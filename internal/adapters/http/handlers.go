package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GetRunHandler returns the general_results summary for a run.
func GetRunHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		runID := c.Params("id")
		if runID == "" {
			return errBadRequest(c, "run id is required")
		}

		summary, err := deps.Runs.GetSummary(c.Context(), runID)
		if err != nil {
			return errNotFound(c, "run not found")
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(summary)
	}
}

// ListRideLogHandler returns the ride_log rows for a run.
func ListRideLogHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		runID := c.Params("id")
		if runID == "" {
			return errBadRequest(c, "run id is required")
		}

		rides, err := deps.Runs.ListRideLog(c.Context(), runID)
		if err != nil {
			return errInternal(c, err.Error())
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		total := len(rides)
		if offset >= total {
			rides = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			rides = rides[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: rides, Pagination: pg})
	}
}

// ListVehicleLogHandler returns the vehicle_log rows for a run, optionally
// filtered to a single vehicle via ?vehicle_id=.
func ListVehicleLogHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		runID := c.Params("id")
		if runID == "" {
			return errBadRequest(c, "run id is required")
		}
		vehicleID := c.Query("vehicle_id")

		log, err := deps.Runs.ListVehicleLog(c.Context(), runID, vehicleID)
		if err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(log)
	}
}

// ListTravellerResultsHandler returns the traveller_results rows for a run.
func ListTravellerResultsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		runID := c.Params("id")
		if runID == "" {
			return errBadRequest(c, "run id is required")
		}

		results, err := deps.Runs.ListTravellerResults(c.Context(), runID)
		if err != nil {
			return errInternal(c, err.Error())
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 200)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 1000 {
			limit = 200
		}

		total := len(results)
		if offset >= total {
			results = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			results = results[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: results, Pagination: pg})
	}
}

// GetTravellerHandler returns a single traveller's traveller_results row;
// its utility_results entries are not included.
func GetTravellerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		runID := c.Params("id")
		travellerID := c.Params("traveller_id")
		if runID == "" || travellerID == "" {
			return errBadRequest(c, "run id and traveller id are required")
		}

		results, err := deps.Runs.ListTravellerResults(c.Context(), runID)
		if err != nil {
			return errInternal(c, err.Error())
		}

		for _, r := range results {
			if r.TravellerID == travellerID {
				return c.JSON(r)
			}
		}
		return errNotFound(c, "traveller not found in this run")
	}
}

// BatchVehiclesHandler returns vehicle_log rows for multiple vehicles.
// GET /v1/runs/:id/vehicles?ids=V1,V2,V3
func BatchVehiclesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		runID := c.Params("id")
		if runID == "" {
			return errBadRequest(c, "run id is required")
		}
		ids := c.Query("ids", "")
		if ids == "" {
			return errBadRequest(c, "ids query parameter is required (comma-separated)")
		}

		var vehicleIDs []string
		for _, id := range strings.Split(ids, ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				vehicleIDs = append(vehicleIDs, trimmed)
			}
		}
		if len(vehicleIDs) == 0 {
			return errBadRequest(c, "at least one vehicle ID is required")
		}
		if len(vehicleIDs) > 100 {
			return errBadRequest(c, "maximum 100 vehicle IDs allowed")
		}

		out := make(map[string]interface{}, len(vehicleIDs))
		for _, id := range vehicleIDs {
			log, err := deps.Runs.ListVehicleLog(c.Context(), runID, id)
			if err != nil {
				return errInternal(c, err.Error())
			}
			out[id] = log
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(out)
	}
}
